// Package backup exports the catalog to JSON snapshots and restores it.
// Snapshots can be kept locally or in object storage.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"small-library/internal/domain"
	"small-library/internal/repository"
	"small-library/internal/storage"
	"small-library/internal/validation"
)

const formatVersion = 1

// Snapshot is a full copy of the catalog. Record IDs are informational;
// Import lets the store assign new ones.
type Snapshot struct {
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Authors   []domain.Author `json:"authors"`
	Books     []domain.Book   `json:"books"`
	Users     []domain.User   `json:"users"`
}

// Export reads all three collections concurrently.
func Export(ctx context.Context, repos repository.Repositories) (*Snapshot, error) {
	snap := &Snapshot{Version: formatVersion, CreatedAt: time.Now().UTC()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Authors, err = repos.Authors.List(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Books, err = repos.Books.List(ctx, domain.BookFilter{})
		return err
	})
	g.Go(func() (err error) {
		snap.Users, err = repos.Users.List(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("export catalog: %w", err)
	}
	return snap, nil
}

// Validate checks every record and the uniqueness of names, titles and
// usernames within the snapshot.
func (s *Snapshot) Validate(v *validation.Validator) error {
	if s.Version != formatVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}

	authors := make(map[string]bool, len(s.Authors))
	for i := range s.Authors {
		a := &s.Authors[i]
		if err := v.Validate(a); err != nil {
			return fmt.Errorf("author %d: %w", i, err)
		}
		if authors[a.Name] {
			return fmt.Errorf("author %d: %w", i, repository.Duplicate("Author", "name", a.Name))
		}
		authors[a.Name] = true
	}

	titles := make(map[string]bool, len(s.Books))
	for i := range s.Books {
		b := &s.Books[i]
		if err := v.Validate(b); err != nil {
			return fmt.Errorf("book %d: %w", i, err)
		}
		if titles[b.Title] {
			return fmt.Errorf("book %d: %w", i, repository.Duplicate("Book", "title", b.Title))
		}
		titles[b.Title] = true
	}

	usernames := make(map[string]bool, len(s.Users))
	for i := range s.Users {
		u := &s.Users[i]
		if err := v.Validate(u); err != nil {
			return fmt.Errorf("user %d: %w", i, err)
		}
		if usernames[u.Username] {
			return fmt.Errorf("user %d: %w", i, repository.Duplicate("User", "username", u.Username))
		}
		usernames[u.Username] = true
	}
	return nil
}

// Import replaces the catalog with snap. The snapshot is validated first;
// a rejected snapshot leaves the catalog untouched.
func Import(ctx context.Context, repos repository.Repositories, snap *Snapshot) error {
	if err := snap.Validate(validation.New()); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	if err := repos.Books.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear books: %w", err)
	}
	if err := repos.Authors.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear authors: %w", err)
	}
	if err := repos.Users.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}

	for _, a := range snap.Authors {
		author := a
		if err := repos.Authors.Create(ctx, &author); err != nil {
			return fmt.Errorf("restore author %q: %w", a.Name, err)
		}
	}
	for _, b := range snap.Books {
		book := b
		if err := repos.Books.Create(ctx, &book); err != nil {
			return fmt.Errorf("restore book %q: %w", b.Title, err)
		}
	}
	for _, u := range snap.Users {
		user := u
		if err := repos.Users.Create(ctx, &user); err != nil {
			return fmt.Errorf("restore user %q: %w", u.Username, err)
		}
	}
	return nil
}

func Encode(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func Decode(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Archive keeps snapshots under a prefix in an object storage bucket.
type Archive struct {
	store  storage.Service
	bucket string
	prefix string
}

func NewArchive(store storage.Service, bucket, prefix string) *Archive {
	return &Archive{store: store, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// keyLayout is fixed width, so key order is creation order.
const keyLayout = "20060102T150405.000000000Z"

// Key returns the object key for a snapshot taken at t.
func (a *Archive) Key(t time.Time) string {
	return path.Join(a.prefix, "snapshot-"+t.UTC().Format(keyLayout)+".json")
}

// Put uploads snap and returns its location.
func (a *Archive) Put(ctx context.Context, snap *Snapshot, progress func(done, total int64)) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return a.store.Upload(ctx, &buf, int64(buf.Len()), storage.UploadOptions{
		Bucket:           a.bucket,
		Key:              a.Key(snap.CreatedAt),
		ContentType:      "application/json",
		ProgressCallback: progress,
	})
}

func (a *Archive) Get(ctx context.Context, key string) (*Snapshot, error) {
	raw, err := a.store.Download(ctx, a.bucket, key)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(raw))
}

// List returns stored snapshots, newest first.
func (a *Archive) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	objects, err := a.store.ListObjects(ctx, a.bucket, a.listPrefix())
	if err != nil {
		return nil, err
	}
	slices.SortFunc(objects, func(x, y storage.ObjectInfo) int {
		return strings.Compare(y.Key, x.Key)
	})
	return objects, nil
}

// Prune deletes all but the newest keep snapshots and returns the removed keys.
func (a *Archive) Prune(ctx context.Context, keep int) ([]string, error) {
	objects, err := a.List(ctx)
	if err != nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(objects) <= keep {
		return nil, nil
	}

	removed := make([]string, 0, len(objects)-keep)
	for _, obj := range objects[keep:] {
		removed = append(removed, obj.Key)
	}
	if err := a.store.Delete(ctx, a.bucket, removed); err != nil {
		return nil, fmt.Errorf("prune snapshots: %w", err)
	}
	return removed, nil
}

func (a *Archive) listPrefix() string {
	if a.prefix == "" {
		return ""
	}
	return a.prefix + "/"
}
