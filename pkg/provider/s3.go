package provider

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/canopyhq/canopy/pkg/errors"
)

// S3Config configures an [S3Provider]. Endpoint is optional; set it for
// MinIO and other S3-compatible services.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Provider stores vault files as objects.
//
// Layout inside the bucket:
//
//	folders/<name>        folder name → id marker
//	files/<folder>/<id>   file content, display name in object metadata
//	trash/<folder>/<id>   trashed files
//	locks/<vault>         advisory lock marker (JSON)
//	manifests/<vault>     repository manifest (JSON)
//
// File ids are "<folderID>/<uuid>" so a bare id locates its object; the
// compound stays opaque to callers.
type S3Provider struct {
	client *s3.Client
	bucket string

	mu     sync.RWMutex
	online bool
}

// NewS3Provider builds the client, verifies credentials, and makes sure
// the bucket exists (creating it when allowed).
func NewS3Provider(ctx context.Context, cfg S3Config) (*S3Provider, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// Path-style addressing is required by MinIO and most
		// self-hosted S3 implementations.
		o.UsePathStyle = true
	})

	p := &S3Provider{client: client, bucket: cfg.Bucket, online: true}
	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *S3Provider) ensureBucket(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err == nil {
		return nil
	}
	if _, createErr := p.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(p.bucket)}); createErr != nil {
		return p.fail(createErr, "bucket %s missing and cannot be created", p.bucket)
	}
	return nil
}

// Online implements [Provider].
func (p *S3Provider) Online() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

func (p *S3Provider) setOnline(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}

// fail classifies an SDK error and updates the online flag. Transport
// failures (no HTTP response at all) count as offline.
func (p *S3Provider) fail(err error, format string, args ...any) error {
	var ue *url.Error
	if stderrors.As(err, &ue) {
		p.setOnline(false)
		return errors.Wrap(errors.ErrCodeOffline, err, format, args...)
	}
	p.setOnline(true)
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrCodeTimeout, err, format, args...)
	}
	return errors.Wrap(errors.ErrCodeNetwork, err, format, args...)
}

func isNoSuchKey(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return stderrors.As(err, &noKey) || stderrors.As(err, &notFound)
}

// ListFiles implements [Provider].
func (p *S3Provider) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	prefix := "files/" + folderID + "/"
	var out []File

	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, p.fail(err, "list folder %s", folderID)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			head, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(p.bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return nil, p.fail(err, "stat %s", key)
			}
			out = append(out, File{
				ID:       strings.TrimPrefix(key, "files/"),
				FolderID: folderID,
				Name:     head.Metadata["name"],
				Size:     aws.ToInt64(obj.Size),
				Modified: aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}
	p.setOnline(true)
	return out, nil
}

// CreateFile implements [Provider].
func (p *S3Provider) CreateFile(ctx context.Context, folderID, name string, content []byte) (File, error) {
	id := folderID + "/" + uuid.NewString()
	if err := p.putFileObject(ctx, id, name, content); err != nil {
		return File{}, err
	}
	return File{
		ID:       id,
		FolderID: folderID,
		Name:     name,
		Size:     int64(len(content)),
		Modified: time.Now().UTC(),
	}, nil
}

// UpdateFile implements [Provider]. The display name rides along in
// object metadata and is carried over from the existing object.
func (p *S3Provider) UpdateFile(ctx context.Context, fileID string, content []byte) (File, error) {
	head, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String("files/" + fileID),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return File{}, errors.New(errors.ErrCodeFileNotFound, "file %s", fileID)
		}
		return File{}, p.fail(err, "stat file %s", fileID)
	}
	name := head.Metadata["name"]
	if err := p.putFileObject(ctx, fileID, name, content); err != nil {
		return File{}, err
	}
	return File{
		ID:       fileID,
		FolderID: folderOf(fileID),
		Name:     name,
		Size:     int64(len(content)),
		Modified: time.Now().UTC(),
	}, nil
}

func (p *S3Provider) putFileObject(ctx context.Context, fileID, name string, content []byte) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(p.bucket),
		Key:      aws.String("files/" + fileID),
		Body:     bytes.NewReader(content),
		Metadata: map[string]string{"name": name},
	})
	if err != nil {
		return p.fail(err, "upload file %s", fileID)
	}
	p.setOnline(true)
	return nil
}

// GetFile implements [Provider].
func (p *S3Provider) GetFile(ctx context.Context, fileID string) (File, []byte, error) {
	resp, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String("files/" + fileID),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return File{}, nil, errors.New(errors.ErrCodeFileNotFound, "file %s", fileID)
		}
		return File{}, nil, p.fail(err, "fetch file %s", fileID)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return File{}, nil, p.fail(err, "read file %s", fileID)
	}
	p.setOnline(true)
	return File{
		ID:       fileID,
		FolderID: folderOf(fileID),
		Name:     resp.Metadata["name"],
		Size:     int64(len(content)),
		Modified: aws.ToTime(resp.LastModified).UTC(),
	}, content, nil
}

// TrashFile implements [Provider]: copy under trash/ and delete the live
// object, preserving the content for manual recovery.
func (p *S3Provider) TrashFile(ctx context.Context, fileID string) error {
	// Keys are uuid-based and URL-safe, no escaping needed in CopySource.
	_, err := p.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(p.bucket),
		CopySource: aws.String(p.bucket + "/files/" + fileID),
		Key:        aws.String("trash/" + fileID),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return errors.New(errors.ErrCodeFileNotFound, "file %s", fileID)
		}
		return p.fail(err, "trash file %s", fileID)
	}
	if _, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String("files/" + fileID),
	}); err != nil {
		return p.fail(err, "remove trashed file %s", fileID)
	}
	p.setOnline(true)
	return nil
}

// FindOrCreateFolder implements [Provider]. The marker object maps the
// folder name to a stable id.
func (p *S3Provider) FindOrCreateFolder(ctx context.Context, name string) (string, error) {
	key := "folders/" + url.PathEscape(name)
	resp, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		defer resp.Body.Close()
		id, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", p.fail(readErr, "read folder marker %s", name)
		}
		p.setOnline(true)
		return string(id), nil
	}
	if !isNoSuchKey(err) {
		return "", p.fail(err, "resolve folder %s", name)
	}

	id := uuid.NewString()
	if _, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(id),
	}); err != nil {
		return "", p.fail(err, "create folder %s", name)
	}
	p.setOnline(true)
	return id, nil
}

// AcquireLock implements [Provider]. Creation is atomic via a conditional
// put; refresh and steal overwrite unconditionally after inspecting the
// current marker (the lock is advisory, the residual race is accepted).
func (p *S3Provider) AcquireLock(ctx context.Context, vaultID, owner string) error {
	key := "locks/" + vaultID
	marker, err := json.Marshal(Lock{Owner: owner, AcquiredAt: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode lock marker")
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(marker),
		IfNoneMatch: aws.String("*"),
	})
	if err == nil {
		p.setOnline(true)
		return nil
	}

	// Conditional put failed: somebody holds a marker. Read it to
	// decide between rejection, refresh, and steal.
	resp, getErr := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if getErr != nil {
		if isNoSuchKey(getErr) {
			// Marker vanished between put and get; retry the
			// acquire from scratch on the next sync pass.
			return errors.New(errors.ErrCodeLock, "vault %s lock contended", vaultID)
		}
		return p.fail(getErr, "inspect lock for vault %s", vaultID)
	}
	defer resp.Body.Close()

	var held Lock
	if decodeErr := json.NewDecoder(resp.Body).Decode(&held); decodeErr != nil {
		// Unreadable marker: treat as stale and take it over.
		held = Lock{}
	}
	if held.Owner != "" && held.Owner != owner && !held.Stale(time.Now().UTC()) {
		return errors.New(errors.ErrCodeLock, "vault %s locked by %s", vaultID, held.Owner)
	}

	if _, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(marker),
	}); err != nil {
		return p.fail(err, "acquire lock for vault %s", vaultID)
	}
	p.setOnline(true)
	return nil
}

// ReleaseLock implements [Provider].
func (p *S3Provider) ReleaseLock(ctx context.Context, vaultID, owner string) error {
	key := "locks/" + vaultID
	resp, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return p.fail(err, "inspect lock for vault %s", vaultID)
	}
	var held Lock
	decodeErr := json.NewDecoder(resp.Body).Decode(&held)
	resp.Body.Close()
	if decodeErr == nil && held.Owner != owner {
		return nil
	}

	if _, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return p.fail(err, "release lock for vault %s", vaultID)
	}
	p.setOnline(true)
	return nil
}

// GetManifest implements [Provider].
func (p *S3Provider) GetManifest(ctx context.Context, vaultID string) ([]byte, bool, error) {
	resp, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String("manifests/" + vaultID),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, false, nil
		}
		return nil, false, p.fail(err, "fetch manifest for vault %s", vaultID)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, p.fail(err, "read manifest for vault %s", vaultID)
	}
	p.setOnline(true)
	return data, true, nil
}

// PutManifest implements [Provider].
func (p *S3Provider) PutManifest(ctx context.Context, vaultID string, data []byte) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String("manifests/" + vaultID),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return p.fail(err, "store manifest for vault %s", vaultID)
	}
	p.setOnline(true)
	return nil
}

// folderOf extracts the folder component of a compound file id.
func folderOf(fileID string) string {
	if i := strings.LastIndex(fileID, "/"); i >= 0 {
		return fileID[:i]
	}
	return ""
}

var _ Provider = (*S3Provider)(nil)
