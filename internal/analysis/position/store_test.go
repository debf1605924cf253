package position

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skalibog/btcscope/internal/kvstore"
	"github.com/skalibog/btcscope/pkg/models"
)

func TestValidate(t *testing.T) {
	valid := models.Position{Asset: "BTC", Direction: models.Long, EntryPrice: 50000, Size: 1, Leverage: 10}

	tests := []struct {
		name    string
		mutate  func(p *models.Position)
		wantErr bool
	}{
		{"valid", func(p *models.Position) {}, false},
		{"empty asset", func(p *models.Position) { p.Asset = " " }, true},
		{"neutral", func(p *models.Position) { p.Direction = models.Neutral }, true},
		{"zero entry", func(p *models.Position) { p.EntryPrice = 0 }, true},
		{"negative size", func(p *models.Position) { p.Size = -1 }, true},
		{"leverage too high", func(p *models.Position) { p.Leverage = 200 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := Validate(p); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kvstore.NewMemoryStore())

	first, err := s.Create(ctx, models.Position{Asset: "btc", Direction: models.Long, EntryPrice: 50000, Size: 1, Leverage: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.ID == "" || first.Asset != "BTC" {
		t.Errorf("ожидался идентификатор и актив в верхнем регистре: %+v", first)
	}

	s.now = func() time.Time { return first.CreatedAt.Add(time.Minute) }
	second, err := s.Create(ctx, models.Position{Asset: "ETH", Direction: models.Short, EntryPrice: 3000, Size: 2, Leverage: 5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Errorf("ожидался список по времени создания: %+v", list)
	}

	if err := s.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound, получено %v", err)
	}
	if err := s.Delete(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторное удаление должно вернуть ErrNotFound, получено %v", err)
	}
}

func TestStoreAdjust(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kvstore.NewMemoryStore())

	p, err := s.Create(ctx, models.Position{Asset: "BTC", Direction: models.Long, EntryPrice: 50000, Size: 1, Leverage: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	p, err = s.Adjust(ctx, p.ID, models.SizeAdjustment{Type: models.AdjustmentDCA, Amount: 1, Price: 40000})
	if err != nil {
		t.Fatalf("Adjust DCA: %v", err)
	}
	if len(p.Adjustments) != 1 || p.Adjustments[0].Time.IsZero() {
		t.Errorf("корректировка должна сохраниться со временем: %+v", p.Adjustments)
	}

	if _, err := s.Adjust(ctx, p.ID, models.SizeAdjustment{Type: models.AdjustmentPartialClose, Amount: 3}); !errors.Is(err, ErrInvalid) {
		t.Error("нельзя закрыть больше текущего размера")
	}
	if _, err := s.Adjust(ctx, p.ID, models.SizeAdjustment{Type: models.AdjustmentDCA, Amount: 1}); err == nil {
		t.Error("докупка без цены должна отклоняться")
	}

	stored, err := s.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if op := BuildOpenPosition(stored, 45000); op.AverageEntry != 45000 || op.CurrentSize != 2 {
		t.Errorf("ожидалась средняя 45000 и размер 2: %+v", op)
	}
}

func TestStoreWithoutBackend(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Create(context.Background(), models.Position{Asset: "BTC", Direction: models.Long, EntryPrice: 1, Size: 1, Leverage: 1})
	if !errors.Is(err, kvstore.ErrNotConfigured) {
		t.Errorf("ожидался ErrNotConfigured, получено %v", err)
	}
}
