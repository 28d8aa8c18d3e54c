package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/ellavondegurechaff/habitbot/habitbot/database/models"
	"github.com/ellavondegurechaff/habitbot/habitbot/database/repositories"
)

// ObjectStore is the subset of the S3 client used for backups.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type StorageOptions struct {
	Endpoint string
	Region   string
	Bucket   string
	Key      string
	Secret   string
	Prefix   string
}

// NewS3Store builds an S3 client. Endpoint may point at any S3 compatible
// service such as DigitalOcean Spaces or MinIO.
func NewS3Store(ctx context.Context, opts StorageOptions) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.Key, opts.Secret, "")),
		config.WithRegion(opts.Region),
	}
	if opts.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: opts.Endpoint, HostnameImmutable: true}, nil
		})
		loadOpts = append(loadOpts, config.WithEndpointResolverWithOptions(resolver))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load storage config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

type Snapshot struct {
	TakenAt     time.Time            `json:"taken_at"`
	Users       []*models.User       `json:"users"`
	Habits      []*models.Habit      `json:"habits"`
	Completions []*models.Completion `json:"completions"`
	Badges      []*models.Badge      `json:"badges"`
}

type BackupService struct {
	store       ObjectStore
	bucket      string
	prefix      string
	users       repositories.UserRepository
	habits      repositories.HabitRepository
	completions repositories.CompletionRepository
	badges      repositories.BadgeRepository
	// history bounds how far back completions are exported.
	history time.Duration
	now     func() time.Time
}

func NewBackupService(store ObjectStore, bucket, prefix string, users repositories.UserRepository, habits repositories.HabitRepository, completions repositories.CompletionRepository, badges repositories.BadgeRepository) *BackupService {
	return &BackupService{
		store:       store,
		bucket:      bucket,
		prefix:      strings.TrimPrefix(prefix, "/"),
		users:       users,
		habits:      habits,
		completions: completions,
		badges:      badges,
		history:     400 * 24 * time.Hour,
		now:         time.Now,
	}
}

func (s *BackupService) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{TakenAt: s.now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Users, err = s.users.GetUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Habits, err = s.habits.GetHabits(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Completions, err = s.completions.GetCompletionsSince(gctx, snap.TakenAt.Add(-s.history))
		return err
	})
	g.Go(func() (err error) {
		snap.Badges, err = s.badges.GetBadges(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to collect backup: %w", err)
	}
	return snap, nil
}

// Run uploads a gzipped JSON snapshot and returns its object key.
func (s *BackupService) Run(ctx context.Context) (string, error) {
	start := time.Now()
	snap, err := s.Collect(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		return "", fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to compress backup: %w", err)
	}

	key := fmt.Sprintf("%shabitbot-%s.json.gz", s.prefix, snap.TakenAt.Format("20060102T150405Z"))
	_, err = s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload backup %s: %w", key, err)
	}

	slog.Info("Backup uploaded",
		slog.String("type", "sys"),
		slog.String("key", key),
		slog.Int("users", len(snap.Users)),
		slog.Int("completions", len(snap.Completions)),
		slog.Int("bytes", buf.Len()),
		slog.Duration("took", time.Since(start)))
	return key, nil
}
