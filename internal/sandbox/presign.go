package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/mondo/internal/config"
)

// UploadSlot is where an attachment's bytes go (UploadURL) and where the
// file is reachable afterwards (FileURL).
type UploadSlot struct {
	UploadURL string
	FileURL   string
}

// Presigner issues upload slots for attachment keys.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string) (UploadSlot, error)
}

// routable presigners serve their upload URLs from the sandbox itself.
type routable interface {
	register(r gin.IRouter)
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// S3Presigner presigns PUT requests against an S3 compatible bucket.
type S3Presigner struct {
	client *s3.PresignClient
	bucket string
	ttl    time.Duration
}

// NewS3Presigner builds a presigner from the sandbox S3 settings. Static
// credentials are used when an access key is configured, the default AWS
// credential chain otherwise.
func NewS3Presigner(ctx context.Context, cfg config.S3Config) (*S3Presigner, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Presigner{client: newS3PresignClient(client), bucket: cfg.Bucket, ttl: ttl}, nil
}

func (p *S3Presigner) PresignPut(ctx context.Context, key, contentType string) (UploadSlot, error) {
	req, err := presignPutObject(p.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return UploadSlot{}, fmt.Errorf("presign put: %w", err)
	}

	fileURL, err := url.Parse(req.URL)
	if err != nil {
		return UploadSlot{}, fmt.Errorf("parse presigned url: %w", err)
	}
	fileURL.RawQuery = ""
	return UploadSlot{UploadURL: req.URL, FileURL: fileURL.String()}, nil
}

// LocalPresigner keeps uploaded files in memory and serves them under
// /uploads/ on the sandbox itself. Each slot accepts a single PUT carrying
// the one-time token from its URL.
type LocalPresigner struct {
	baseURL string

	mu    sync.Mutex
	slots map[string]localSlot
	files map[string]localFile
}

type localSlot struct {
	token       string
	contentType string
}

type localFile struct {
	contentType string
	data        []byte
}

// maxUploadSize caps a single local upload.
const maxUploadSize = 10 << 20

func NewLocalPresigner(baseURL string) *LocalPresigner {
	return &LocalPresigner{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		slots:   map[string]localSlot{},
		files:   map[string]localFile{},
	}
}

func (p *LocalPresigner) PresignPut(_ context.Context, key, contentType string) (UploadSlot, error) {
	token, err := randHex(16)
	if err != nil {
		return UploadSlot{}, err
	}

	p.mu.Lock()
	p.slots[key] = localSlot{token: token, contentType: contentType}
	p.mu.Unlock()

	fileURL := p.baseURL + "/uploads/" + key
	return UploadSlot{
		UploadURL: fileURL + "?" + url.Values{"token": {token}}.Encode(),
		FileURL:   fileURL,
	}, nil
}

// File returns an uploaded file's content and type.
func (p *LocalPresigner) File(key string) ([]byte, string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[key]
	return f.data, f.contentType, ok
}

func (p *LocalPresigner) register(r gin.IRouter) {
	r.PUT("/uploads/*key", p.put)
	r.GET("/uploads/*key", p.get)
}

func (p *LocalPresigner) put(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	p.mu.Lock()
	slot, ok := p.slots[key]
	if ok && slot.token == c.Query("token") {
		delete(p.slots, key)
	} else {
		ok = false
	}
	p.mu.Unlock()

	if !ok {
		apiError(c, http.StatusForbidden, "forbidden.bad_upload_token", "upload URL is invalid or already used")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize))
	if err != nil {
		apiError(c, http.StatusRequestEntityTooLarge, "bad_request.upload_too_large", err.Error())
		return
	}

	contentType := c.ContentType()
	if contentType == "" {
		contentType = slot.contentType
	}

	p.mu.Lock()
	p.files[key] = localFile{contentType: contentType, data: data}
	p.mu.Unlock()
	c.Status(http.StatusOK)
}

func (p *LocalPresigner) get(c *gin.Context) {
	data, contentType, ok := p.File(strings.TrimPrefix(c.Param("key"), "/"))
	if !ok {
		apiError(c, http.StatusNotFound, "not_found.file", "file not found")
		return
	}
	c.Data(http.StatusOK, contentType, data)
}
