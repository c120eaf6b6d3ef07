package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/store"
)

// AdConfigRepository edits the ad unit documents in place. They are seeded
// outside this service, so there is no Create or Delete.
type AdConfigRepository struct {
	coll store.Collection
}

func NewAdConfigRepository(db store.Database) *AdConfigRepository {
	return &AdConfigRepository{coll: db.Collection(models.CollectionAds)}
}

func (r *AdConfigRepository) List(ctx context.Context) ([]models.AdConfig, error) {
	var list []models.AdConfig
	if err := r.coll.Find(ctx, nil, nil, &list); err != nil {
		return nil, fmt.Errorf("list ad configs: %w", err)
	}
	return orEmpty(list), nil
}

func (r *AdConfigRepository) GetByID(ctx context.Context, id string) (*models.AdConfig, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	a := &models.AdConfig{}
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}, a)
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ad config %s: %w", id, err)
	}
	return a, nil
}

func (r *AdConfigRepository) Update(ctx context.Context, id string, in models.AdConfigUpdate) (*models.AdConfig, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": stamp()}
	for field, v := range map[string]*string{
		"interstitial_ad_id": in.InterstitialAdID,
		"banner_ad_id":       in.BannerAdID,
		"native_ad_id":       in.NativeAdID,
		"app_open_ad_id":     in.AppOpenAdID,
		"reward_ad_id":       in.RewardAdID,
	} {
		if v != nil {
			set[field] = *v
		}
	}
	if in.IsAdsEnabled != nil {
		set["is_ads_enabled"] = *in.IsAdsEnabled
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("update ad config %s: %w", id, err)
	}
	if res.Matched == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}
