package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/store"
	"github.com/JustinTDCT/SerialDesk/internal/store/memstore"
)

func newDB() store.Database {
	return memstore.New("test")
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestChannelRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewChannelRepository(newDB())

	created, err := repo.Create(ctx, models.ChannelCreate{Name: "Star Jalsha"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID.IsZero() || created.Name != "Star Jalsha" || !created.IsActive {
		t.Fatalf("created = %+v", created)
	}
	if created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Errorf("timestamps = %v / %v", created.CreatedAt, created.UpdatedAt)
	}

	time.Sleep(2 * time.Millisecond)
	updated, err := repo.Update(ctx, created.ID.Hex(), models.ChannelUpdate{LogoURL: strPtr("/assets/images/a.png")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Star Jalsha" {
		t.Errorf("Name = %q, omitted field must be kept", updated.Name)
	}
	if updated.LogoURL != "/assets/images/a.png" {
		t.Errorf("LogoURL = %q", updated.LogoURL)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("UpdatedAt %v not after %v", updated.UpdatedAt, created.UpdatedAt)
	}

	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %d items, %v", len(list), err)
	}

	if err := repo.Delete(ctx, created.ID.Hex()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, created.ID.Hex()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestChannelRepository_CreateRequiresName(t *testing.T) {
	_, err := NewChannelRepository(newDB()).Create(context.Background(), models.ChannelCreate{})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if ve.Message != "name is required" {
		t.Errorf("Message = %q", ve.Message)
	}
}

func TestRepositories_UnknownAndMalformedIDs(t *testing.T) {
	ctx := context.Background()
	db := newDB()
	channels := NewChannelRepository(db)
	serials := NewSerialRepository(db)
	notices := NewNoticeRepository(db)
	ads := NewAdConfigRepository(db)
	episodes := NewEpisodeRepository(db)

	for _, id := range []string{primitive.NewObjectID().Hex(), "not-an-id", ""} {
		checks := []struct {
			name string
			err  error
		}{
			{"channel get", second(channels.GetByID(ctx, id))},
			{"channel update", second(channels.Update(ctx, id, models.ChannelUpdate{Name: strPtr("x")}))},
			{"channel delete", channels.Delete(ctx, id)},
			{"serial get", second(serials.GetByID(ctx, id))},
			{"serial update", second(serials.Update(ctx, id, models.SerialUpdate{Name: strPtr("x")}))},
			{"serial delete", serials.Delete(ctx, id)},
			{"notice get", second(notices.GetByID(ctx, id))},
			{"notice update", second(notices.Update(ctx, id, models.NoticeUpdate{Title: strPtr("x")}))},
			{"notice delete", notices.Delete(ctx, id)},
			{"ad update", second(ads.Update(ctx, id, models.AdConfigUpdate{IsAdsEnabled: boolPtr(true)}))},
			{"episode get", second(episodes.GetByID(ctx, id))},
			{"episode update", second(episodes.Update(ctx, id, models.EpisodeUpdate{VideoURL: strPtr("v")}))},
			{"episode delete", episodes.Delete(ctx, id)},
		}
		for _, c := range checks {
			if !errors.Is(c.err, ErrNotFound) {
				t.Errorf("%s(%q) err = %v, want ErrNotFound", c.name, id, c.err)
			}
		}
	}
}

func second(_ any, err error) error { return err }

func TestSerialRepository_RoundTripDisplayFields(t *testing.T) {
	ctx := context.Background()
	repo := NewSerialRepository(newDB())

	created, err := repo.Create(ctx, models.SerialCreate{Name: "X", ChannelID: "C1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByID(ctx, created.ID.Hex())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "X" || got.ChannelAlias != "C1" {
		t.Errorf("name/channelId = %q/%q, want X/C1", got.Name, got.ChannelAlias)
	}
	if got.Title != "X" || got.ChannelID != "C1" {
		t.Errorf("storage fields = %q/%q", got.Title, got.ChannelID)
	}
	if got.Status != models.SerialActive || got.Channel != nil {
		t.Errorf("status/channel = %q/%v", got.Status, got.Channel)
	}
}

func TestSerialRepository_JoinsChannel(t *testing.T) {
	ctx := context.Background()
	db := newDB()
	ch, _ := NewChannelRepository(db).Create(ctx, models.ChannelCreate{Name: "Zee"})
	repo := NewSerialRepository(db)
	if _, err := repo.Create(ctx, models.SerialCreate{Name: "S", ChannelID: ch.ID.Hex()}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Channel == nil || list[0].Channel.Name != "Zee" {
		t.Fatalf("List = %+v, want one serial joined with Zee", list)
	}
}

func TestSerialRepository_Validation(t *testing.T) {
	ctx := context.Background()
	repo := NewSerialRepository(newDB())
	tests := []struct {
		name string
		in   models.SerialCreate
		want string
	}{
		{"missing name", models.SerialCreate{ChannelID: "C1"}, "name is required"},
		{"missing channel", models.SerialCreate{Name: "X"}, "channelId is required"},
		{"bad status", models.SerialCreate{Name: "X", ChannelID: "C1", Status: "paused"}, "status must be one of active, inactive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(ctx, tt.in)
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Message != tt.want {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestEpisodeRepository_CreateAndDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewEpisodeRepository(newDB())

	first, err := repo.Create(ctx, models.EpisodeCreate{
		VideoURL:      "https://v/1",
		EpisodeNumber: json.RawMessage(`"1"`),
		SerialID:      "S1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(first.ID) != 34 || first.ID[:2] != "ep" {
		t.Errorf("ID = %q, want ep + 32 hex chars", first.ID)
	}
	if first.EpisodeNumber == nil || *first.EpisodeNumber != 1 {
		t.Errorf("EpisodeNumber = %v, want 1", first.EpisodeNumber)
	}
	if first.ReleaseDate.IsZero() {
		t.Error("ReleaseDate should default to now")
	}

	_, err = repo.Create(ctx, models.EpisodeCreate{VideoURL: "https://v/2", EpisodeNumber: json.RawMessage(`1`), SerialID: "S1"})
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("duplicate err = %v, want DuplicateError", err)
	}
	if dup.Error() != "Episode number already exists for this serial" {
		t.Errorf("message = %q", dup.Error())
	}

	if _, err := repo.Create(ctx, models.EpisodeCreate{VideoURL: "https://v/3", EpisodeNumber: json.RawMessage(`1`), SerialID: "S2"}); err != nil {
		t.Errorf("same number in another serial: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := repo.Create(ctx, models.EpisodeCreate{VideoURL: "https://v/n", EpisodeNumber: json.RawMessage(`null`), SerialID: "S1"}); err != nil {
			t.Errorf("null number #%d: %v", i, err)
		}
	}
}

func TestEpisodeRepository_UpdateUsesStoredSerial(t *testing.T) {
	ctx := context.Background()
	repo := NewEpisodeRepository(newDB())
	mk := func(n string) *models.Episode {
		ep, err := repo.Create(ctx, models.EpisodeCreate{VideoURL: "v", EpisodeNumber: json.RawMessage(n), SerialID: "S1"})
		if err != nil {
			t.Fatalf("Create %s: %v", n, err)
		}
		return ep
	}
	mk("1")
	two := mk("2")

	_, err := repo.Update(ctx, two.ID, models.EpisodeUpdate{EpisodeNumber: json.RawMessage(`1`)})
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("Update err = %v, want DuplicateError", err)
	}

	same, err := repo.Update(ctx, two.ID, models.EpisodeUpdate{EpisodeNumber: json.RawMessage(`2`), VideoURL: strPtr("v2")})
	if err != nil {
		t.Fatalf("Update keeping own number: %v", err)
	}
	if same.VideoURL != "v2" || same.SerialID != "S1" {
		t.Errorf("updated = %+v", same)
	}

	cleared, err := repo.Update(ctx, two.ID, models.EpisodeUpdate{EpisodeNumber: json.RawMessage(`""`)})
	if err != nil {
		t.Fatalf("Update clearing number: %v", err)
	}
	if cleared.EpisodeNumber != nil {
		t.Errorf("EpisodeNumber = %v, want nil", *cleared.EpisodeNumber)
	}
}

func TestEpisodeRepository_ListOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewEpisodeRepository(newDB())
	inputs := []struct {
		number, date, serial string
	}{
		{`1`, "2024-01-03", "S1"},
		{`3`, "2024-01-01", "S1"},
		{`2`, "2024-01-02", "S1"},
		{`1`, "2024-01-05", "S2"},
	}
	for _, in := range inputs {
		if _, err := repo.Create(ctx, models.EpisodeCreate{
			VideoURL: "v", EpisodeNumber: json.RawMessage(in.number), ReleaseDate: in.date, SerialID: in.serial,
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	bySerial, err := repo.List(ctx, "S1")
	if err != nil {
		t.Fatalf("List S1: %v", err)
	}
	var numbers []int
	for _, ep := range bySerial {
		numbers = append(numbers, *ep.EpisodeNumber)
	}
	if len(numbers) != 3 || numbers[0] != 3 || numbers[1] != 2 || numbers[2] != 1 {
		t.Errorf("S1 numbers = %v, want [3 2 1]", numbers)
	}

	all, err := repo.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 4 || all[0].SerialID != "S2" || all[3].ReleaseDate.Day() != 1 {
		t.Errorf("all not sorted by release_date desc: %+v", all)
	}
}

func TestParseEpisodeNumber(t *testing.T) {
	tests := []struct {
		raw      string
		want     *int
		supplied bool
		wantErr  bool
	}{
		{"", nil, false, false},
		{`null`, nil, true, false},
		{`""`, nil, true, false},
		{`7`, intPtr(7), true, false},
		{`0`, nil, true, false},
		{`"12"`, intPtr(12), true, false},
		{`"08"`, intPtr(8), true, false},
		{`"0"`, intPtr(0), true, false},
		{`"abc"`, nil, true, true},
		{`true`, nil, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, supplied, err := parseEpisodeNumber(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if supplied != tt.supplied {
				t.Errorf("supplied = %v, want %v", supplied, tt.supplied)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("got %d, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("got %v, want %d", got, *tt.want)
			}
		})
	}
}

func intPtr(n int) *int { return &n }

func TestEpisodeRepository_UniqueIndexMapsToDuplicateError(t *testing.T) {
	ctx := context.Background()
	db := newDB()
	repo := NewEpisodeRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	// Bypass the pre-check by writing directly, as a concurrent writer would.
	if _, err := db.Collection(models.CollectionEpisodes).InsertOne(ctx, bson.M{
		"_id": "ep-racer", "video_url": "v", "serial_id": "S1", "episode_number": 4,
	}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	first, err := repo.Create(ctx, models.EpisodeCreate{VideoURL: "v", EpisodeNumber: json.RawMessage(`5`), SerialID: "S1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = db.Collection(models.CollectionEpisodes).UpdateOne(ctx, bson.M{"_id": first.ID}, bson.M{"$set": bson.M{"episode_number": 4}})
	if !store.IsDuplicateKey(err) {
		t.Fatalf("raw update err = %v, want duplicate key", err)
	}
}

func TestNoticeRepository_Defaults(t *testing.T) {
	ctx := context.Background()
	repo := NewNoticeRepository(newDB())

	n, err := repo.Create(ctx, models.NoticeCreate{Title: "T", Message: "M"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.Priority != models.PriorityMedium || !n.IsActive {
		t.Errorf("defaults = %q/%v, want medium/true", n.Priority, n.IsActive)
	}

	_, err = repo.Create(ctx, models.NoticeCreate{Title: "T"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Message != "message is required" {
		t.Errorf("missing message err = %v", err)
	}

	bad := models.NoticePriority("urgent")
	_, err = repo.Update(ctx, n.ID.Hex(), models.NoticeUpdate{Priority: &bad})
	if !errors.As(err, &ve) {
		t.Errorf("bad priority err = %v, want ValidationError", err)
	}
}

func TestAdConfigRepository_UpdateInPlace(t *testing.T) {
	ctx := context.Background()
	db := newDB()
	id, err := db.Collection(models.CollectionAds).InsertOne(ctx, models.AdConfig{BannerAdID: "b1", NativeAdID: "n1"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo := NewAdConfigRepository(db)

	got, err := repo.Update(ctx, hexID(id), models.AdConfigUpdate{BannerAdID: strPtr("b2"), IsAdsEnabled: boolPtr(true)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.BannerAdID != "b2" || got.NativeAdID != "n1" || !got.IsAdsEnabled || got.UpdatedAt.IsZero() {
		t.Errorf("updated = %+v", got)
	}
}

func TestSnapshotRepository_Load(t *testing.T) {
	ctx := context.Background()
	db := newDB()
	ch, _ := NewChannelRepository(db).Create(ctx, models.ChannelCreate{Name: "C"})
	NewSerialRepository(db).Create(ctx, models.SerialCreate{Name: "S", ChannelID: ch.ID.Hex()})
	NewNoticeRepository(db).Create(ctx, models.NoticeCreate{Title: "T", Message: "M"})
	db.Collection(models.CollectionAppUpdates).InsertOne(ctx, bson.M{"version": "1.0.1", "force": true})
	db.Collection(models.CollectionPremiumPurchases).InsertOne(ctx, bson.M{"user": "u1"})
	db.Collection(models.CollectionPremiumPurchases).InsertOne(ctx, bson.M{"user": "u2"})

	snap, err := NewSnapshotRepository(db).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := snap.Stats
	if s.Channels != 1 || s.Serials != 1 || s.Notices != 1 || s.AppUpdates != 1 || s.PremiumPurchases != 2 || s.Episodes != 0 || s.AdmobAds != 0 {
		t.Errorf("stats = %+v", s)
	}
	sum := s.Channels + s.Serials + s.Episodes + s.Notices + s.AdmobAds + s.AppUpdates + s.PremiumPurchases
	if s.TotalDocuments != sum {
		t.Errorf("TotalDocuments = %d, want %d", s.TotalDocuments, sum)
	}
	if snap.Data.Serials[0].Channel == nil || snap.Data.Serials[0].Name != "S" {
		t.Errorf("serial not in display shape: %+v", snap.Data.Serials[0])
	}
	if snap.Data.Episodes == nil || snap.Data.AdmobAds == nil {
		t.Error("empty collections must encode as [] not null")
	}
}

func TestSnapshotRepository_CancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSnapshotRepository(newDB()).Load(ctx); err == nil {
		t.Fatal("Load succeeded with a cancelled context")
	}
}

func TestUpdates_RejectBlankRequiredFields(t *testing.T) {
	ctx := context.Background()
	db := newDB()
	channels := NewChannelRepository(db)
	serials := NewSerialRepository(db)
	notices := NewNoticeRepository(db)

	ch, err := channels.Create(ctx, models.ChannelCreate{Name: "Zee"})
	if err != nil {
		t.Fatalf("channel Create: %v", err)
	}
	s, err := serials.Create(ctx, models.SerialCreate{Name: "S", ChannelID: ch.ID.Hex()})
	if err != nil {
		t.Fatalf("serial Create: %v", err)
	}
	n, err := notices.Create(ctx, models.NoticeCreate{Title: "T", Message: "M"})
	if err != nil {
		t.Fatalf("notice Create: %v", err)
	}

	tests := []struct {
		name    string
		update  func() error
		message string
	}{
		{"channel name", func() error {
			_, err := channels.Update(ctx, ch.ID.Hex(), models.ChannelUpdate{Name: strPtr("")})
			return err
		}, "name is required"},
		{"serial name", func() error {
			_, err := serials.Update(ctx, s.ID.Hex(), models.SerialUpdate{Name: strPtr("")})
			return err
		}, "name is required"},
		{"serial channelId", func() error {
			_, err := serials.Update(ctx, s.ID.Hex(), models.SerialUpdate{ChannelID: strPtr("")})
			return err
		}, "channelId is required"},
		{"notice title", func() error {
			_, err := notices.Update(ctx, n.ID.Hex(), models.NoticeUpdate{Title: strPtr("")})
			return err
		}, "title is required"},
		{"notice message", func() error {
			_, err := notices.Update(ctx, n.ID.Hex(), models.NoticeUpdate{Message: strPtr("")})
			return err
		}, "message is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *ValidationError
			if err := tt.update(); !errors.As(err, &ve) || ve.Message != tt.message {
				t.Errorf("err = %v, want %q", err, tt.message)
			}
		})
	}

	got, err := channels.GetByID(ctx, ch.ID.Hex())
	if err != nil || got.Name != "Zee" {
		t.Errorf("stored channel = %+v, %v; blank update must not be written", got, err)
	}

	// Omitted required fields are still a valid partial update.
	if _, err := serials.Update(ctx, s.ID.Hex(), models.SerialUpdate{Description: strPtr("d")}); err != nil {
		t.Errorf("partial serial update: %v", err)
	}
}

// createConcurrently fires n creates of the same episode number and returns
// how many succeeded. Every failure must be a DuplicateError.
func createConcurrently(t *testing.T, repo *EpisodeRepository, n int) int {
	t.Helper()
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(context.Background(), models.EpisodeCreate{
				VideoURL:      "https://v/1.mp4",
				EpisodeNumber: json.RawMessage(`3`),
				SerialID:      "S1",
			})
			var dup *DuplicateError
			if err != nil && !errors.As(err, &dup) {
				t.Errorf("Create err = %v, want DuplicateError", err)
				return
			}
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return successes
}

func TestEpisodeRepository_ConcurrentDuplicates(t *testing.T) {
	t.Run("pre-check only", func(t *testing.T) {
		repo := NewEpisodeRepository(newDB())
		if got := createConcurrently(t, repo, 20); got < 1 {
			t.Errorf("successes = %d, want at least 1", got)
		}
	})
	t.Run("unique index", func(t *testing.T) {
		repo := NewEpisodeRepository(newDB())
		if err := repo.EnsureIndexes(context.Background()); err != nil {
			t.Fatalf("EnsureIndexes: %v", err)
		}
		if got := createConcurrently(t, repo, 20); got != 1 {
			t.Errorf("successes = %d, want exactly 1", got)
		}
		list, err := repo.List(context.Background(), "S1")
		if err != nil || len(list) != 1 {
			t.Errorf("stored episodes = %d, %v", len(list), err)
		}
	})
}
