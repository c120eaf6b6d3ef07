package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/store"
)

type ChannelRepository struct {
	coll store.Collection
}

func NewChannelRepository(db store.Database) *ChannelRepository {
	return &ChannelRepository{coll: db.Collection(models.CollectionChannels)}
}

func (r *ChannelRepository) List(ctx context.Context) ([]models.Channel, error) {
	var list []models.Channel
	if err := r.coll.Find(ctx, nil, nil, &list); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return orEmpty(list), nil
}

func (r *ChannelRepository) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	c := &models.Channel{}
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}, c)
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %s: %w", id, err)
	}
	return c, nil
}

func (r *ChannelRepository) Create(ctx context.Context, in models.ChannelCreate) (*models.Channel, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	now := stamp()
	c := &models.Channel{
		Name:      in.Name,
		LogoURL:   in.LogoURL,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	id, err := r.coll.InsertOne(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return r.GetByID(ctx, hexID(id))
}

// Update replaces only the supplied fields and always stamps updatedAt.
func (r *ChannelRepository) Update(ctx context.Context, id string, in models.ChannelUpdate) (*models.Channel, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": stamp()}
	if in.Name != nil {
		set["name"] = *in.Name
	}
	if in.LogoURL != nil {
		set["logo_url"] = *in.LogoURL
	}
	if in.IsActive != nil {
		set["is_active"] = *in.IsActive
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("update channel %s: %w", id, err)
	}
	if res.Matched == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *ChannelRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	n, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete channel %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
