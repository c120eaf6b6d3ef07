package maintenance

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"github.com/JustinTDCT/SerialDesk/internal/config"
	"github.com/JustinTDCT/SerialDesk/internal/db"
	"github.com/JustinTDCT/SerialDesk/internal/models"
)

var reportCollections = []string{
	models.CollectionChannels,
	models.CollectionSerials,
	models.CollectionEpisodes,
	models.CollectionNotices,
	models.CollectionAds,
	models.CollectionAppUpdates,
	models.CollectionPremiumPurchases,
}

type Report struct {
	Counts           map[string]int64 `json:"counts"`
	Channels         []ChannelSummary `json:"channels"`
	Serials          []SerialSummary  `json:"serials"`
	EpisodesBySerial map[string]int64 `json:"episodesBySerial"`
}

type ChannelSummary struct {
	Name      string     `json:"name" bson:"name"`
	LogoURL   string     `json:"logo_url" bson:"logo_url"`
	IsActive  bool       `json:"is_active" bson:"is_active"`
	CreatedAt *time.Time `json:"createdAt,omitempty" bson:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty" bson:"updatedAt"`
}

type SerialSummary struct {
	Name       string     `json:"name" bson:"-"`
	Title      string     `json:"-" bson:"title"`
	LegacyName string     `json:"-" bson:"name"`
	Image      string     `json:"image" bson:"image"`
	Status     string     `json:"status" bson:"status"`
	CreatedAt  *time.Time `json:"createdAt,omitempty" bson:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty" bson:"updatedAt"`
}

// Report summarizes what is stored: document counts per collection, every
// channel and serial, and how many episodes each serial has.
func (r *Runner) Report(ctx context.Context) (*Report, error) {
	rep := &Report{
		Counts:           make(map[string]int64, len(reportCollections)),
		EpisodesBySerial: map[string]int64{},
	}
	counts := make([]int64, len(reportCollections))
	var episodes []struct {
		SerialID string `bson:"serial_id"`
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range reportCollections {
		g.Go(func() error {
			n, err := r.db.Collection(name).CountDocuments(gctx, bson.M{})
			if err != nil {
				return fmt.Errorf("count %s: %w", name, err)
			}
			counts[i] = n
			return nil
		})
	}
	g.Go(func() error {
		return r.db.Collection(models.CollectionChannels).Find(gctx, bson.M{}, bson.D{{Key: "name", Value: 1}}, &rep.Channels)
	})
	g.Go(func() error {
		return r.db.Collection(models.CollectionSerials).Find(gctx, bson.M{}, bson.D{{Key: "title", Value: 1}}, &rep.Serials)
	})
	g.Go(func() error {
		return r.db.Collection(models.CollectionEpisodes).Find(gctx, bson.M{}, nil, &episodes)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, name := range reportCollections {
		rep.Counts[name] = counts[i]
	}
	for i := range rep.Serials {
		s := &rep.Serials[i]
		s.Name = s.Title
		if s.Name == "" {
			s.Name = s.LegacyName
		}
	}
	for _, ep := range episodes {
		rep.EpisodesBySerial[ep.SerialID]++
	}
	if rep.Channels == nil {
		rep.Channels = []ChannelSummary{}
	}
	if rep.Serials == nil {
		rep.Serials = []SerialSummary{}
	}
	return rep, nil
}

// Diagnostics reports which settings are present and whether the database
// answers a ping. Secrets are reported as set or not set, never echoed.
type Diagnostics struct {
	AppEnv        string `json:"appEnv"`
	Port          int    `json:"port"`
	MongoURI      string `json:"mongodbUri"`
	DBDriver      string `json:"dbDriver"`
	DBMode        string `json:"dbConnectionMode"`
	Redis         string `json:"redis"`
	Database      string `json:"database"`
	DatabaseError string `json:"databaseError,omitempty"`
}

func Diagnose(ctx context.Context, cfg *config.Config, provider db.Provider) *Diagnostics {
	d := &Diagnostics{
		AppEnv:   cfg.AppEnv,
		Port:     cfg.Port,
		MongoURI: presence(cfg.MongoURI),
		DBDriver: cfg.DBDriver,
		DBMode:   cfg.DBConnectionMode,
		Redis:    presence(cfg.RedisURL),
		Database: "ok",
	}
	h, err := provider.Acquire(ctx)
	if err == nil {
		err = h.Ping(ctx)
		_ = provider.Release(ctx, h)
	}
	if err != nil {
		d.Database = "failed"
		d.DatabaseError = err.Error()
	}
	return d
}

func presence(v string) string {
	if v == "" {
		return "not set"
	}
	return "set"
}
