package minioutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/kjk/filedump/atomicfile"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// suffix of objects compressed with brotli
const brotliExt = ".br"

type Config struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
	// use http instead of https, e.g. for local minio
	Insecure     bool
	RequestTrace io.Writer
}

type Client struct {
	Client *minio.Client
	config *Config
	Bucket string
}

func New(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("must provide config")
	}
	c := config
	if c.Access == "" || c.Secret == "" || c.Bucket == "" || c.Endpoint == "" {
		return nil, errors.New("must provide all fields in config")
	}

	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: !c.Insecure,
	})
	if err != nil {
		return nil, err
	}
	if c.RequestTrace != nil {
		mc.TraceOn(c.RequestTrace)
	}
	found, err := mc.BucketExists(ctx, c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}

	return &Client{
		Client: mc,
		config: config,
		Bucket: c.Bucket,
	}, nil
}

// Exists returns false, nil if remotePath doesn't exist and an error
// if we couldn't tell
func (c *Client) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := c.Client.StatObject(ctx, c.Bucket, remotePath, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func (c *Client) UploadFile(ctx context.Context, remotePath string, path string) (minio.UploadInfo, error) {
	opts := minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}
	return c.Client.FPutObject(ctx, c.Bucket, remotePath, path, opts)
}

func brotliCompress(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.BestCompression)
	if _, err = io.Copy(w, f); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UploadFileBrotliCompressed uploads compressed content of path
// as remotePath + ".br"
func (c *Client) UploadFileBrotliCompressed(ctx context.Context, remotePath string, path string) (minio.UploadInfo, error) {
	// TODO: use io.Pipe() to compress shards larger than memory
	d, err := brotliCompress(path)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	opts := minio.PutObjectOptions{
		ContentType:     "application/octet-stream",
		ContentEncoding: "br",
	}
	r := bytes.NewReader(d)
	return c.Client.PutObject(ctx, c.Bucket, remotePath+brotliExt, r, int64(len(d)), opts)
}

// DownloadFileAtomically downloads remotePath to dstPath. If remotePath
// ends with ".br" the content is decompressed.
func (c *Client) DownloadFileAtomically(ctx context.Context, dstPath string, remotePath string) error {
	obj, err := c.Client.GetObject(ctx, c.Bucket, remotePath, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	// ensure there's a dir for destination file
	if err = os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	var r io.Reader = obj
	if strings.HasSuffix(remotePath, brotliExt) {
		r = brotli.NewReader(obj)
	}

	f, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	if _, err = io.Copy(f, r); err != nil {
		return err
	}
	return f.Close()
}

// ListObjects lists objects directly under prefix, not in nested "directories"
func (c *Client) ListObjects(ctx context.Context, prefix string) <-chan minio.ObjectInfo {
	opts := minio.ListObjectsOptions{
		Prefix: prefix,
	}
	return c.Client.ListObjects(ctx, c.Bucket, opts)
}

// joins remote paths, always with '/'
func remoteJoin(dir string, name string) string {
	return path.Join(dir, name)
}
