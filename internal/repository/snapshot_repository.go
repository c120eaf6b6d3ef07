package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"github.com/JustinTDCT/SerialDesk/internal/mapper"
	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/store"
)

// Snapshot is every collection the consumer app reads, taken in one pass.
type Snapshot struct {
	Data      SnapshotData  `json:"data"`
	Stats     SnapshotStats `json:"stats"`
	Timestamp time.Time     `json:"timestamp"`
}

type SnapshotData struct {
	Channels         []models.Channel    `json:"channels"`
	Serials          []mapper.SerialView `json:"serials"`
	Episodes         []models.Episode    `json:"episodes"`
	Notices          []models.Notice     `json:"notices"`
	AdmobAds         []models.AdConfig   `json:"admobAds"`
	AppUpdates       []map[string]any    `json:"appUpdates"`
	PremiumPurchases []map[string]any    `json:"premiumPurchases"`
}

type SnapshotStats struct {
	Channels         int `json:"channels"`
	Serials          int `json:"serials"`
	Episodes         int `json:"episodes"`
	Notices          int `json:"notices"`
	AdmobAds         int `json:"admobAds"`
	AppUpdates       int `json:"appUpdates"`
	PremiumPurchases int `json:"premiumPurchases"`
	TotalDocuments   int `json:"totalDocuments"`
}

type SnapshotRepository struct {
	db store.Database
}

func NewSnapshotRepository(db store.Database) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Load reads all seven collections concurrently. The first failure cancels the
// remaining reads and fails the whole snapshot.
func (r *SnapshotRepository) Load(ctx context.Context) (*Snapshot, error) {
	var (
		channels         []models.Channel
		serials          []models.Serial
		episodes         []models.Episode
		notices          []models.Notice
		ads              []models.AdConfig
		appUpdates       []bson.M
		premiumPurchases []bson.M
	)

	g, gctx := errgroup.WithContext(ctx)
	read := func(collection string, out any) {
		g.Go(func() error {
			if err := r.db.Collection(collection).Find(gctx, nil, nil, out); err != nil {
				return fmt.Errorf("read %s: %w", collection, err)
			}
			return nil
		})
	}
	read(models.CollectionChannels, &channels)
	read(models.CollectionSerials, &serials)
	read(models.CollectionEpisodes, &episodes)
	read(models.CollectionNotices, &notices)
	read(models.CollectionAds, &ads)
	read(models.CollectionAppUpdates, &appUpdates)
	read(models.CollectionPremiumPurchases, &premiumPurchases)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Data: SnapshotData{
			Channels:         orEmpty(channels),
			Serials:          mapper.ToSerialViews(serials, mapper.IndexChannels(channels)),
			Episodes:         orEmpty(episodes),
			Notices:          orEmpty(notices),
			AdmobAds:         orEmpty(ads),
			AppUpdates:       mapper.Documents(appUpdates),
			PremiumPurchases: mapper.Documents(premiumPurchases),
		},
		Timestamp: time.Now().UTC(),
	}
	snap.Stats = SnapshotStats{
		Channels:         len(snap.Data.Channels),
		Serials:          len(snap.Data.Serials),
		Episodes:         len(snap.Data.Episodes),
		Notices:          len(snap.Data.Notices),
		AdmobAds:         len(snap.Data.AdmobAds),
		AppUpdates:       len(snap.Data.AppUpdates),
		PremiumPurchases: len(snap.Data.PremiumPurchases),
	}
	snap.Stats.TotalDocuments = snap.Stats.Channels + snap.Stats.Serials + snap.Stats.Episodes +
		snap.Stats.Notices + snap.Stats.AdmobAds + snap.Stats.AppUpdates + snap.Stats.PremiumPurchases
	return snap, nil
}

func orEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
