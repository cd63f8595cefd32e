package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pikpakhelper/internal/model"
	"pikpakhelper/internal/repository"
	"pikpakhelper/pkg/metrics"
)

var (
	ErrInvalidID   = errors.New("invalid account id")
	ErrInvalidData = errors.New("account data must be a JSON object")
	ErrNotFound    = repository.ErrAccountNotFound
)

// Store is the persistence the service needs; *repository.AccountRepository
// satisfies it.
type Store interface {
	Create(ctx context.Context, a *model.Account) error
	List(ctx context.Context) ([]model.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
	UpdateData(ctx context.Context, id uuid.UUID, email string, data json.RawMessage) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// List 返回所有账号，最新的在前
func (s *Service) List(ctx context.Context) ([]model.Account, error) {
	accounts, err := s.store.List(ctx)
	record("list", err)
	return accounts, err
}

// Save stores a registered account. name defaults to the local part of the
// email, as the registration flow names accounts.
func (s *Service) Save(ctx context.Context, data json.RawMessage) (*model.Account, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, err
	}

	email := stringField(fields, "email")
	name := stringField(fields, "name")
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	a := &model.Account{Name: name, Email: email, Data: data}
	err = s.store.Create(ctx, a)
	record("save", err)
	if err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	s.logger.Info("Account saved", zap.String("account_id", a.ID.String()), zap.String("email", email))
	return a, nil
}

// Update replaces the JSON document of an account.
func (s *Service) Update(ctx context.Context, rawID string, data json.RawMessage) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}

	// 编辑器回传的 view 里带了 id / created_at，不写回 data
	delete(fields, "id")
	delete(fields, "created_at")
	clean, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	err = s.store.UpdateData(ctx, id, stringField(fields, "email"), clean)
	record("update", err)
	return err
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	err = s.store.Delete(ctx, id)
	record("delete", err)
	if err == nil {
		s.logger.Info("Account deleted", zap.String("account_id", id.String()))
	}
	return err
}

// Get 按 id 取单个账号
func (s *Service) Get(ctx context.Context, rawID string) (*model.Account, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func parseID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, ErrInvalidID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrInvalidID, raw)
	}
	return id, nil
}

// decodeObject 解码账号 JSON；数字保持 json.Number，写回时不丢精度
func decodeObject(data json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, ErrInvalidData
	}
	if dec.More() {
		return nil, ErrInvalidData
	}
	return fields, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func record(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncrementAccountOperation(op, status)
}
