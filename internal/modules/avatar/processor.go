package avatar

import (
	"context"
	"fmt"
	"log/slog"

	"sessionauth/internal/pkg/upload"
	"sessionauth/internal/pkg/worker"
)

const jobName = "avatar_upload"

// Store records the uploaded avatar on the user and returns the public id it replaced.
type Store interface {
	SetAvatar(ctx context.Context, userID int64, url, publicID string) (string, error)
}

type Submitter interface {
	Submit(ctx context.Context, job worker.Job) error
}

// Processor uploads staged avatars off the request path. A failed upload leaves the user without
// an avatar; it never fails the request that scheduled it.
type Processor struct {
	pool     Submitter
	uploader upload.Uploader
	users    Store
	log      *slog.Logger
}

func NewProcessor(pool Submitter, uploader upload.Uploader, users Store, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{pool: pool, uploader: uploader, users: users, log: log}
}

// Schedule takes ownership of the staged file at path.
func (p *Processor) Schedule(ctx context.Context, userID int64, path string) error {
	if path == "" {
		return nil
	}
	err := p.pool.Submit(ctx, worker.Job{
		Name: jobName,
		Run: func(jobCtx context.Context) error {
			return p.Process(jobCtx, userID, path)
		},
	})
	if err != nil {
		upload.RemoveTemp(path)
		return fmt.Errorf("schedule avatar upload for user %d: %w", userID, err)
	}
	return nil
}

// Process uploads the staged file, points the user at it and removes the avatar it replaced.
func (p *Processor) Process(ctx context.Context, userID int64, path string) error {
	url, publicID, err := p.uploader.Upload(ctx, path)
	if err != nil {
		return fmt.Errorf("upload avatar for user %d: %w", userID, err)
	}

	previous, err := p.users.SetAvatar(ctx, userID, url, publicID)
	if err != nil {
		if delErr := p.uploader.Delete(ctx, publicID); delErr != nil {
			p.log.Warn("orphaned avatar upload", "public_id", publicID, "error", delErr)
		}
		return fmt.Errorf("save avatar for user %d: %w", userID, err)
	}

	p.log.Info("avatar updated", "user_id", userID, "public_id", publicID)

	if previous != "" && previous != publicID {
		if err := p.uploader.Delete(ctx, previous); err != nil {
			return fmt.Errorf("delete previous avatar %s: %w", previous, err)
		}
	}
	return nil
}
