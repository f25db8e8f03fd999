package storage

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/conorfennell/leitner/internal/domain"
	"github.com/conorfennell/leitner/internal/validator"
)

const defaultBranch = "main"

var ErrInvalidSource = errors.New("invalid source config")

// Sources persists the remote deck repository coordinates.
type Sources struct {
	kv  KV
	log *zap.Logger
}

func NewSources(kv KV, log *zap.Logger) *Sources {
	return &Sources{kv: kv, log: log}
}

// Load returns defaults overlaid with any stored fields.
func (s *Sources) Load(ctx context.Context, defaults domain.SourceConfig) (domain.SourceConfig, error) {
	stored, err := loadDocument[map[string]string](ctx, s.kv, s.log, KeyConfig)
	if err != nil {
		return defaults, err
	}
	cfg := defaults
	for key, value := range stored {
		switch key {
		case "owner":
			cfg.Owner = value
		case "repo":
			cfg.Repo = value
		case "branch":
			cfg.Branch = value
		case "path":
			cfg.Path = value
		}
	}
	return cfg, nil
}

// Save trims and validates cfg, then stores it. An empty branch means "main".
func (s *Sources) Save(ctx context.Context, cfg domain.SourceConfig) (domain.SourceConfig, error) {
	cfg.Owner = strings.TrimSpace(cfg.Owner)
	cfg.Repo = strings.TrimSpace(cfg.Repo)
	cfg.Branch = strings.TrimSpace(cfg.Branch)
	cfg.Path = strings.TrimSpace(cfg.Path)
	if cfg.Branch == "" {
		cfg.Branch = defaultBranch
	}
	if err := validator.ValidateStruct(cfg); err != nil {
		return cfg, errors.Wrap(ErrInvalidSource, err.Error())
	}
	return cfg, saveDocument(ctx, s.kv, KeyConfig, cfg)
}
