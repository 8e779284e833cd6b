package files

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/2beens/portfolio/internal/telemetry/tracing"
	"github.com/2beens/portfolio/pkg"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// DiskStore keeps uploads under <root>/<kind>/ and an index of them in
// <root>/files-index.json.
type DiskStore struct {
	rootPath string
	index    map[Kind]map[string]*File
	mutex    sync.RWMutex
	now      func() time.Time
}

func NewDiskStore(rootPath string) (*DiskStore, error) {
	if rootPath == "" {
		return nil, errors.New("root path cannot be empty")
	}
	for kind := range allowedContentTypes {
		if err := os.MkdirAll(filepath.Join(rootPath, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", kind, err)
		}
	}

	index, err := loadIndex(rootPath)
	if err != nil {
		return nil, fmt.Errorf("load files index: %w", err)
	}

	return &DiskStore{
		rootPath: rootPath,
		index:    index,
		now:      time.Now,
	}, nil
}

type SaveFileParams struct {
	Kind     Kind
	Filename string
	File     io.Reader
}

// Save sniffs the content type from the first bytes, rejects anything not
// allowed for the kind, and stores the file under a fresh uuid name.
func (ds *DiskStore) Save(ctx context.Context, params SaveFileParams) (_ *File, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	exts, ok := allowedContentTypes[params.Kind]
	if !ok {
		return nil, ErrUnknownKind
	}

	reader := bufio.NewReaderSize(params.File, sniffContentTypeBytes)
	head, err := reader.Peek(sniffContentTypeBytes)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read file head: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}

	contentType := http.DetectContentType(head)
	ext, ok := exts[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	name := uuid.NewString() + ext
	span.SetAttributes(
		attribute.String("file.kind", string(params.Kind)),
		attribute.String("file.name", name),
	)
	dstPath := ds.path(params.Kind, name)

	tmp, err := os.CreateTemp(filepath.Dir(dstPath), ".upload-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	size, err := io.Copy(tmp, reader)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), dstPath); err != nil {
		return nil, err
	}

	file := &File{
		Name:         name,
		Kind:         params.Kind,
		OriginalName: filepath.Base(params.Filename),
		ContentType:  contentType,
		Size:         size,
		CreatedAt:    ds.now().UTC(),
	}

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	ds.index[params.Kind][name] = file
	if err := saveIndex(ds.rootPath, ds.index); err != nil {
		delete(ds.index[params.Kind], name)
		_ = os.Remove(dstPath)
		return nil, fmt.Errorf("save files index: %w", err)
	}

	log.Debugf("disk store: saved %s/%s (%d bytes)", params.Kind, name, size)

	return file, nil
}

// Open returns the file info and an open handle; callers close it.
func (ds *DiskStore) Open(ctx context.Context, kind Kind, name string) (*File, *os.File, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.open")
	defer span.End()

	ds.mutex.RLock()
	files, ok := ds.index[kind]
	if !ok {
		ds.mutex.RUnlock()
		return nil, nil, ErrUnknownKind
	}
	file, ok := files[name]
	ds.mutex.RUnlock()
	if !ok {
		return nil, nil, ErrFileNotFound
	}

	f, err := os.Open(ds.path(kind, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, err
	}
	return file, f, nil
}

// List returns the files of a kind, newest first.
func (ds *DiskStore) List(ctx context.Context, kind Kind) ([]*File, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.list")
	defer span.End()

	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	files, ok := ds.index[kind]
	if !ok {
		return nil, ErrUnknownKind
	}

	list := make([]*File, 0, len(files))
	for _, f := range files {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Name > list[j].Name
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (ds *DiskStore) Latest(ctx context.Context, kind Kind) (*File, error) {
	list, err := ds.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrFileNotFound
	}
	return list[0], nil
}

func (ds *DiskStore) Delete(ctx context.Context, kind Kind, name string) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	files, ok := ds.index[kind]
	if !ok {
		return ErrUnknownKind
	}
	file, ok := files[name]
	if !ok {
		return ErrFileNotFound
	}

	if err := os.Remove(ds.path(kind, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	delete(files, name)
	if err := saveIndex(ds.rootPath, ds.index); err != nil {
		files[name] = file
		return fmt.Errorf("file removed, but failed to save index: %w", err)
	}

	log.Debugf("disk store: deleted %s/%s", kind, name)
	return nil
}

func (ds *DiskStore) path(kind Kind, name string) string {
	return filepath.Join(ds.rootPath, string(kind), filepath.Base(name))
}

func loadIndex(rootPath string) (map[Kind]map[string]*File, error) {
	index := map[Kind]map[string]*File{}
	for kind := range allowedContentTypes {
		index[kind] = map[string]*File{}
	}

	indexPath := filepath.Join(rootPath, indexJsonFileName)
	exists, err := pkg.PathExists(indexPath, false)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Debugln("files index does not exist, starting empty")
		return index, nil
	}

	indexJson, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, err
	}
	var stored []*File
	if err := json.Unmarshal(indexJson, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal files index: %w", err)
	}
	for _, f := range stored {
		if files, ok := index[f.Kind]; ok {
			files[f.Name] = f
		}
	}
	return index, nil
}

func saveIndex(rootPath string, index map[Kind]map[string]*File) error {
	var all []*File
	for _, files := range index {
		for _, f := range files {
			all = append(all, f)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})

	indexJson, err := json.Marshal(all)
	if err != nil {
		return err
	}

	indexPath := filepath.Join(rootPath, indexJsonFileName)
	tmpPath := indexPath + ".tmp"
	if err := os.WriteFile(tmpPath, indexJson, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, indexPath)
}
