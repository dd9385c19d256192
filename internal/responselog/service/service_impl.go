package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/snappy"
	obscontext "github.com/smallbiznis/hmsinsure/internal/observability/context"
	logdomain "github.com/smallbiznis/hmsinsure/internal/responselog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  logdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  logdomain.Repository
}

func New(p Params) logdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("responselog.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Add(ctx context.Context, req logdomain.AddRequest) (*logdomain.ResponseLog, error) {
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		return nil, logdomain.ErrInvalidProvider
	}
	requestType := strings.TrimSpace(req.RequestType)
	if requestType == "" {
		return nil, logdomain.ErrInvalidRequestType
	}

	_, actorID := obscontext.ActorFromContext(ctx)
	entity := &logdomain.ResponseLog{
		ID:            s.genID.Generate(),
		Provider:      provider,
		Company:       strings.TrimSpace(req.Company),
		RequestType:   requestType,
		RequestURL:    req.RequestURL,
		RequestHeader: redactHeaders(req.RequestHeader),
		RequestBody:   req.RequestBody,
		ResponseSize:  len(req.ResponseData),
		StatusCode:    req.StatusCode,
		RefDoctype:    req.RefDoctype,
		RefDocname:    req.RefDocname,
		UserID:        actorID,
		CreatedAt:     time.Now().UTC(),
	}
	if len(req.ResponseData) > 0 {
		entity.ResponseData = snappy.Encode(nil, req.ResponseData)
	}

	if err := s.repo.Insert(ctx, s.db, entity); err != nil {
		return nil, fmt.Errorf("insert response log: %w", err)
	}

	s.log.Debug("provider response logged",
		zap.String("provider", entity.Provider),
		zap.String("request_type", entity.RequestType),
		zap.Int("status_code", entity.StatusCode),
		zap.Int("response_size", entity.ResponseSize),
		zap.Int("stored_size", len(entity.ResponseData)),
	)
	return entity, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*logdomain.ResponseLog, error) {
	entity, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, logdomain.ErrNotFound
	}
	return entity, nil
}

func (s *Service) Latest(ctx context.Context, provider, company, requestType string, limit int) ([]logdomain.ResponseLog, error) {
	if limit <= 0 {
		limit = 2
	}
	return s.repo.Latest(ctx, s.db, provider, company, requestType, limit)
}

func (s *Service) LatestSuccessful(ctx context.Context, provider, company, requestType string, limit int) ([]logdomain.ResponseLog, error) {
	if limit <= 0 {
		limit = 2
	}
	return s.repo.LatestSuccessful(ctx, s.db, provider, company, requestType, limit)
}

func (s *Service) Payload(l *logdomain.ResponseLog) ([]byte, error) {
	if l == nil || len(l.ResponseData) == 0 {
		return nil, nil
	}
	out, err := snappy.Decode(nil, l.ResponseData)
	if err != nil {
		return nil, fmt.Errorf("decode response log %s: %w", l.ID, err)
	}
	return out, nil
}

func redactHeaders(headers map[string]string) datatypes.JSONMap {
	if len(headers) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(headers))
	for k, v := range headers {
		if strings.EqualFold(k, "Authorization") {
			v = "[redacted]"
		}
		out[k] = v
	}
	return out
}
