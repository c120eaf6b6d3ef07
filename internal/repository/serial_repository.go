package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/JustinTDCT/SerialDesk/internal/mapper"
	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/store"
)

type SerialRepository struct {
	coll     store.Collection
	channels *ChannelRepository
}

func NewSerialRepository(db store.Database) *SerialRepository {
	return &SerialRepository{
		coll:     db.Collection(models.CollectionSerials),
		channels: NewChannelRepository(db),
	}
}

// List returns every serial in display shape, joined with its channel.
func (r *SerialRepository) List(ctx context.Context) ([]mapper.SerialView, error) {
	var serials []models.Serial
	if err := r.coll.Find(ctx, nil, nil, &serials); err != nil {
		return nil, fmt.Errorf("list serials: %w", err)
	}
	channels, err := r.channels.List(ctx)
	if err != nil {
		return nil, err
	}
	return mapper.ToSerialViews(serials, mapper.IndexChannels(channels)), nil
}

func (r *SerialRepository) GetByID(ctx context.Context, id string) (*mapper.SerialView, error) {
	s, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.view(ctx, s)
}

func (r *SerialRepository) Create(ctx context.Context, in models.SerialCreate) (*mapper.SerialView, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	s := mapper.SerialFromCreate(in)
	now := stamp()
	s.CreatedAt, s.UpdatedAt = now, now
	id, err := r.coll.InsertOne(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("insert serial: %w", err)
	}
	return r.GetByID(ctx, hexID(id))
}

func (r *SerialRepository) Update(ctx context.Context, id string, in models.SerialUpdate) (*mapper.SerialView, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	set := mapper.SerialUpdateFields(in)
	set["updatedAt"] = stamp()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("update serial %s: %w", id, err)
	}
	if res.Matched == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *SerialRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	n, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete serial %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SerialRepository) get(ctx context.Context, id string) (*models.Serial, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	s := &models.Serial{}
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}, s)
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get serial %s: %w", id, err)
	}
	return s, nil
}

// view joins the serial's channel. A dangling channel_id yields a null channel.
func (r *SerialRepository) view(ctx context.Context, s *models.Serial) (*mapper.SerialView, error) {
	var channel *models.Channel
	if s.ChannelID != "" {
		c, err := r.channels.GetByID(ctx, s.ChannelID)
		switch {
		case err == nil:
			channel = c
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}
	v := mapper.ToSerialView(*s, channel)
	return &v, nil
}
