// Package upload publishes asset files to a forge release with bounded retry.
//
// Every file goes through a small state machine:
//
//	pending → attempting → succeeded
//	                     → attempting (transient failure, budget left)
//	                     → failed     (permanent failure or budget exhausted)
//
// Only transient failures (network errors, rate limiting, 5xx) consume the
// retry budget. A name collision is resolved by deleting the existing asset
// when overwrite is enabled and is a permanent failure otherwise.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/schollz/progressbar/v3"

	"github.com/joeycumines/go-release-action/src/ctxlog"
	"github.com/joeycumines/go-release-action/src/forge"
)

var (
	// ErrUpload marks any failed upload.
	ErrUpload = errors.New("upload failed")

	// ErrTransient means the retry budget ran out on retryable failures.
	ErrTransient = errors.New("retry budget exhausted")

	// ErrPermanent means retrying could not help.
	ErrPermanent = errors.New("permanent failure")
)

// State is the upload state of one file.
type State string

const (
	StatePending    State = "pending"
	StateAttempting State = "attempting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Request is one file to publish.
type Request struct {
	Path      string // local file
	Name      string // asset name on the release
	MediaType string
}

// Result is the final state of one Request.
type Result struct {
	Name     string
	State    State
	Attempts int
	Asset    *forge.Asset
	Err      error
}

// Uploader publishes files to one release.
type Uploader struct {
	Store forge.ReleaseStore

	Tag         string
	ReleaseName string // creates the release when it does not exist
	Description string // body of a created release
	Overwrite   bool
	Retry       int // total attempts per file, at least 1

	// OnTransition observes state changes.
	OnTransition func(name string, from, to State)

	// Progress receives a progress bar per upload when set.
	Progress io.Writer

	// NewBackOff returns the delay policy between attempts.
	NewBackOff func() backoff.BackOff

	release *forge.Release
}

// New creates an Uploader with exponential backoff.
func New(store forge.ReleaseStore, tag, releaseName string, overwrite bool, retry int) *Uploader {
	return &Uploader{
		Store:       store,
		Tag:         tag,
		ReleaseName: releaseName,
		Overwrite:   overwrite,
		Retry:       retry,
		NewBackOff:  defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Release returns the release assets are attached to, once resolved.
func (u *Uploader) Release() *forge.Release {
	return u.release
}

// Upload publishes req, retrying transient failures. The returned Result
// is always non-nil and records the terminal state.
func (u *Uploader) Upload(ctx context.Context, req Request) (*Result, error) {
	log := ctxlog.FromContext(ctx).With("asset", req.Name)
	res := &Result{Name: req.Name, State: StatePending}

	attempts := u.Retry
	if attempts < 1 {
		attempts = 1
	}
	newBackOff := u.NewBackOff
	if newBackOff == nil {
		newBackOff = defaultBackOff
	}
	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(attempts-1)), ctx)

	var permanent bool
	op := func() error {
		res.Attempts++
		u.transition(res, StateAttempting)
		log.Debug("upload attempt", "attempt", res.Attempts, "of", attempts)

		asset, err := u.attempt(ctx, req)
		if err == nil {
			res.Asset = asset
			return nil
		}
		var pe *backoff.PermanentError
		if errors.As(err, &pe) {
			permanent = true
			return err
		}
		if forge.IsTransient(err) && ctx.Err() == nil {
			return err
		}
		permanent = true
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("upload attempt failed, retrying", "attempt", res.Attempts, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(op, b, notify)
	if err == nil {
		u.transition(res, StateSucceeded)
		log.Info("uploaded", "attempts", res.Attempts, "url", res.Asset.DownloadURL)
		return res, nil
	}

	kind := ErrTransient
	if permanent {
		kind = ErrPermanent
	}
	res.Err = fmt.Errorf("%w: %w: %s after %d attempt(s): %v", ErrUpload, kind, req.Name, res.Attempts, err)
	u.transition(res, StateFailed)
	return res, res.Err
}

func (u *Uploader) transition(res *Result, to State) {
	from := res.State
	res.State = to
	if u.OnTransition != nil {
		u.OnTransition(res.Name, from, to)
	}
}

// attempt runs one full try: resolve the release, clear a same-named asset
// if allowed, and send the file.
func (u *Uploader) attempt(ctx context.Context, req Request) (*forge.Asset, error) {
	rel, err := u.resolveRelease(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := u.Store.ListAssets(ctx, rel)
	if err != nil {
		return nil, err
	}
	for _, a := range existing {
		if a.Name != req.Name {
			continue
		}
		if !u.Overwrite {
			return nil, backoff.Permanent(fmt.Errorf("asset %q already exists on release %s (enable overwrite to replace it)", req.Name, rel.TagName))
		}
		ctxlog.FromContext(ctx).Info("replacing existing asset", "asset", a.Name, "id", a.ID)
		if err := u.Store.DeleteAsset(ctx, rel, a); err != nil && !forge.IsNotFound(err) {
			return nil, err
		}
	}

	asset, err := u.send(ctx, rel, req)
	if err != nil && forge.IsConflict(err) && u.Overwrite {
		// Another writer won the race between listing and uploading.
		if derr := u.deleteNamed(ctx, rel, req.Name); derr != nil {
			return nil, derr
		}
		asset, err = u.send(ctx, rel, req)
	}
	return asset, err
}

func (u *Uploader) resolveRelease(ctx context.Context) (*forge.Release, error) {
	if u.release != nil {
		return u.release, nil
	}

	var (
		rel *forge.Release
		err error
	)
	if u.Tag != "" {
		rel, err = u.Store.ReleaseByTag(ctx, u.Tag)
	} else {
		rel, err = u.Store.ReleaseByName(ctx, u.ReleaseName)
	}

	if forge.IsNotFound(err) {
		if u.ReleaseName == "" || u.Tag == "" {
			return nil, backoff.Permanent(fmt.Errorf("release %s not found (set a release name and tag to create it)", u.describe()))
		}
		ctxlog.FromContext(ctx).Info("creating release", "tag", u.Tag, "name", u.ReleaseName)
		rel, err = u.Store.CreateRelease(ctx, forge.ReleaseOptions{
			TagName:     u.Tag,
			Name:        u.ReleaseName,
			Description: u.Description,
		})
	}
	if err != nil {
		return nil, err
	}

	u.release = rel
	return rel, nil
}

func (u *Uploader) describe() string {
	if u.Tag != "" {
		return "for tag " + u.Tag
	}
	return "named " + u.ReleaseName
}

func (u *Uploader) deleteNamed(ctx context.Context, rel *forge.Release, name string) error {
	assets, err := u.Store.ListAssets(ctx, rel)
	if err != nil {
		return err
	}
	for _, a := range assets {
		if a.Name == name {
			if err := u.Store.DeleteAsset(ctx, rel, a); err != nil && !forge.IsNotFound(err) {
				return err
			}
		}
	}
	return nil
}

// send opens the file fresh so every attempt streams from the start.
func (u *Uploader) send(ctx context.Context, rel *forge.Release, req Request) (*forge.Asset, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	var body io.Reader = f
	if u.Progress != nil {
		bar := progressbar.NewOptions64(fi.Size(),
			progressbar.OptionSetDescription(req.Name),
			progressbar.OptionSetWriter(u.Progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		body = io.TeeReader(f, bar)
	}

	return u.Store.UploadAsset(ctx, rel, forge.Upload{
		Name:      req.Name,
		MediaType: req.MediaType,
		Size:      fi.Size(),
		Body:      body,
	})
}
