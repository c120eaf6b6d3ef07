package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/store"
)

type NoticeRepository struct {
	coll store.Collection
}

func NewNoticeRepository(db store.Database) *NoticeRepository {
	return &NoticeRepository{coll: db.Collection(models.CollectionNotices)}
}

func (r *NoticeRepository) List(ctx context.Context) ([]models.Notice, error) {
	var list []models.Notice
	if err := r.coll.Find(ctx, nil, nil, &list); err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	return orEmpty(list), nil
}

func (r *NoticeRepository) GetByID(ctx context.Context, id string) (*models.Notice, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	n := &models.Notice{}
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}, n)
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notice %s: %w", id, err)
	}
	return n, nil
}

func (r *NoticeRepository) Create(ctx context.Context, in models.NoticeCreate) (*models.Notice, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	now := stamp()
	n := &models.Notice{
		Title:     in.Title,
		Message:   in.Message,
		Date:      in.Date,
		Priority:  in.Priority,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
	if in.IsActive != nil {
		n.IsActive = *in.IsActive
	}
	id, err := r.coll.InsertOne(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("insert notice: %w", err)
	}
	return r.GetByID(ctx, hexID(id))
}

func (r *NoticeRepository) Update(ctx context.Context, id string, in models.NoticeUpdate) (*models.Notice, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": stamp()}
	if in.Title != nil {
		set["title"] = *in.Title
	}
	if in.Message != nil {
		set["message"] = *in.Message
	}
	if in.Date != nil {
		set["date"] = *in.Date
	}
	if in.Priority != nil {
		set["priority"] = *in.Priority
	}
	if in.IsActive != nil {
		set["is_active"] = *in.IsActive
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("update notice %s: %w", id, err)
	}
	if res.Matched == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *NoticeRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	n, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete notice %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
