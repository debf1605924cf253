package position

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skalibog/btcscope/internal/kvstore"
	"github.com/skalibog/btcscope/pkg/models"
)

const keyPrefix = "position:"

var (
	// ErrNotFound позиция не найдена
	ErrNotFound = errors.New("позиция не найдена")
	// ErrInvalid позиция или корректировка не прошла проверку
	ErrInvalid = errors.New("некорректные данные позиции")
)

// Validate проверяет позицию, введенную пользователем
func Validate(p models.Position) error {
	switch {
	case strings.TrimSpace(p.Asset) == "":
		return errors.New("не указан актив")
	case !p.Direction.Valid():
		return fmt.Errorf("некорректное направление: %q", p.Direction)
	case p.EntryPrice <= 0:
		return errors.New("цена входа должна быть больше нуля")
	case p.Size <= 0:
		return errors.New("размер должен быть больше нуля")
	case p.Leverage < 1 || p.Leverage > 125:
		return fmt.Errorf("плечо вне диапазона 1..125: %v", p.Leverage)
	}
	return nil
}

// Store хранит позиции пользователя в key-value хранилище
type Store struct {
	kv  kvstore.Store
	now func() time.Time
}

// NewStore создает хранилище позиций
func NewStore(kv kvstore.Store) *Store {
	if kv == nil {
		kv = kvstore.NullStore{}
	}
	return &Store{
		kv:  kv,
		now: time.Now,
	}
}

// Create сохраняет новую позицию с новым идентификатором
func (s *Store) Create(ctx context.Context, p models.Position) (models.Position, error) {
	p.Asset = strings.ToUpper(strings.TrimSpace(p.Asset))
	if err := Validate(p); err != nil {
		return models.Position{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	p.ID = uuid.NewString()
	p.CreatedAt = s.now().UTC()
	p.Adjustments = nil

	if err := kvstore.SetJSON(ctx, s.kv, keyPrefix+p.ID, p, 0); err != nil {
		return models.Position{}, fmt.Errorf("ошибка сохранения позиции: %w", err)
	}
	return p, nil
}

// Get возвращает позицию по идентификатору
func (s *Store) Get(ctx context.Context, id string) (models.Position, error) {
	var p models.Position
	err := kvstore.GetJSON(ctx, s.kv, keyPrefix+id, &p)
	if errors.Is(err, kvstore.ErrNotFound) {
		return models.Position{}, ErrNotFound
	}
	if err != nil {
		return models.Position{}, err
	}
	return p, nil
}

// List возвращает все позиции по времени создания. Поврежденные записи пропускаются.
func (s *Store) List(ctx context.Context) ([]models.Position, error) {
	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	positions := make([]models.Position, 0, len(keys))
	for _, key := range keys {
		p, err := s.Get(ctx, strings.TrimPrefix(key, keyPrefix))
		if err != nil {
			continue
		}
		positions = append(positions, p)
	}

	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].CreatedAt.Before(positions[j].CreatedAt)
	})
	return positions, nil
}

// Delete удаляет позицию
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.kv.Remove(ctx, keyPrefix+id)
}

// Adjust добавляет докупку или частичное закрытие. Это единственный способ
// изменить размер позиции.
func (s *Store) Adjust(ctx context.Context, id string, adj models.SizeAdjustment) (models.Position, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return models.Position{}, err
	}

	if adj.Amount <= 0 {
		return models.Position{}, fmt.Errorf("%w: объем корректировки должен быть больше нуля", ErrInvalid)
	}
	switch adj.Type {
	case models.AdjustmentDCA:
		if adj.Price <= 0 {
			return models.Position{}, fmt.Errorf("%w: для докупки нужна цена", ErrInvalid)
		}
	case models.AdjustmentPartialClose:
		if current := BuildOpenPosition(p, p.EntryPrice).CurrentSize; adj.Amount > current {
			return models.Position{}, fmt.Errorf("%w: нельзя закрыть %v из %v", ErrInvalid, adj.Amount, current)
		}
	default:
		return models.Position{}, fmt.Errorf("%w: неизвестный тип корректировки: %q", ErrInvalid, adj.Type)
	}

	if adj.Time.IsZero() {
		adj.Time = s.now().UTC()
	}
	p.Adjustments = append(p.Adjustments, adj)

	if err := kvstore.SetJSON(ctx, s.kv, keyPrefix+p.ID, p, 0); err != nil {
		return models.Position{}, fmt.Errorf("ошибка сохранения позиции: %w", err)
	}
	return p, nil
}
