package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"swarm-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeBucket answers HeadObject for the keys it holds
type fakeBucket struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (b *fakeBucket) put(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.keys == nil {
		b.keys = make(map[string]bool)
	}
	b.keys[key] = true
}

func (b *fakeBucket) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	if !b.keys[aws.ToString(in.Key)] {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(512)}, nil
}

func newTestEmblemService(t *testing.T, env *testEnv) *EmblemService {
	t.Helper()
	svc, err := NewEmblemService(context.Background(), env.swarms, EmblemConfig{
		Region:    "us-east-1",
		Bucket:    "swarm-emblems",
		AccessKey: "test-access",
		SecretKey: "test-secret",
		Endpoint:  "http://localhost:9000",
		PublicURL: "https://cdn.swarm.example/",
	}, nil)
	if err != nil {
		t.Fatalf("NewEmblemService: %v", err)
	}
	return svc
}

func TestPresignEmblemUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "founder")
	env.createUser(t, "member")
	swarm, err := env.swarm.CreateSwarm(ctx, "founder", "Flock")
	if err != nil {
		t.Fatalf("CreateSwarm: %v", err)
	}
	if _, err := env.swarm.JoinSwarm(ctx, "member", swarm.InviteCode); err != nil {
		t.Fatalf("JoinSwarm: %v", err)
	}
	svc := newTestEmblemService(t, env)

	upload, err := svc.PresignEmblemUpload(ctx, "founder", swarm.ID, "image/png")
	if err != nil {
		t.Fatalf("PresignEmblemUpload: %v", err)
	}

	u, err := url.Parse(upload.UploadURL)
	if err != nil {
		t.Fatalf("parse upload url: %v", err)
	}
	if u.Host != "localhost:9000" {
		t.Errorf("upload host = %s", u.Host)
	}
	if !strings.HasPrefix(u.Path, "/swarm-emblems/emblems/"+swarm.ID+"/") || !strings.HasSuffix(u.Path, ".png") {
		t.Errorf("upload path = %s", u.Path)
	}
	if u.Query().Get("X-Amz-Signature") == "" {
		t.Error("upload url is not signed")
	}
	if upload.ExpiresIn != 300 {
		t.Errorf("ExpiresIn = %d", upload.ExpiresIn)
	}
	if !strings.HasPrefix(upload.EmblemURL, "https://cdn.swarm.example/emblems/"+swarm.ID+"/") {
		t.Errorf("EmblemURL = %s", upload.EmblemURL)
	}

	if !strings.HasSuffix(upload.EmblemURL, "/"+upload.Key) {
		t.Errorf("EmblemURL %s does not end in key %s", upload.EmblemURL, upload.Key)
	}

	got, _ := env.swarms.GetByID(ctx, swarm.ID)
	if got.EmblemURL != nil {
		t.Errorf("emblem stored before upload: %v", *got.EmblemURL)
	}

	if _, err := svc.PresignEmblemUpload(ctx, "member", swarm.ID, "image/png"); !errors.Is(err, models.ErrNotFounder) {
		t.Errorf("member upload err = %v, want ErrNotFounder", err)
	}
	if _, err := svc.PresignEmblemUpload(ctx, "founder", swarm.ID, "application/pdf"); !errors.Is(err, ErrUnsupportedContentType) {
		t.Errorf("pdf upload err = %v", err)
	}
	if _, err := svc.PresignEmblemUpload(ctx, "founder", "missing", "image/jpeg"); !errors.Is(err, models.ErrSwarmNotFound) {
		t.Errorf("missing swarm err = %v", err)
	}
}

func TestConfirmEmblemUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "founder")
	env.createUser(t, "member")
	swarm, err := env.swarm.CreateSwarm(ctx, "founder", "Flock")
	if err != nil {
		t.Fatalf("CreateSwarm: %v", err)
	}
	if _, err := env.swarm.JoinSwarm(ctx, "member", swarm.InviteCode); err != nil {
		t.Fatalf("JoinSwarm: %v", err)
	}
	bucket := &fakeBucket{}
	svc := newTestEmblemService(t, env)
	svc.objects = bucket

	upload, err := svc.PresignEmblemUpload(ctx, "founder", swarm.ID, "image/webp")
	if err != nil {
		t.Fatalf("PresignEmblemUpload: %v", err)
	}

	// Not uploaded yet
	if _, err := svc.ConfirmEmblemUpload(ctx, "founder", swarm.ID, upload.Key); !errors.Is(err, ErrEmblemNotUploaded) {
		t.Fatalf("confirm before upload err = %v, want ErrEmblemNotUploaded", err)
	}
	got, _ := env.swarms.GetByID(ctx, swarm.ID)
	if got.EmblemURL != nil {
		t.Fatalf("emblem stored for a missing object: %v", *got.EmblemURL)
	}

	bucket.put(upload.Key)

	if _, err := svc.ConfirmEmblemUpload(ctx, "member", swarm.ID, upload.Key); !errors.Is(err, models.ErrNotFounder) {
		t.Errorf("member confirm err = %v, want ErrNotFounder", err)
	}

	updated, err := svc.ConfirmEmblemUpload(ctx, "founder", swarm.ID, upload.Key)
	if err != nil {
		t.Fatalf("ConfirmEmblemUpload: %v", err)
	}
	if updated.EmblemURL == nil || *updated.EmblemURL != upload.EmblemURL {
		t.Errorf("returned emblem = %v, want %s", updated.EmblemURL, upload.EmblemURL)
	}
	got, _ = env.swarms.GetByID(ctx, swarm.ID)
	if got.EmblemURL == nil || *got.EmblemURL != upload.EmblemURL {
		t.Errorf("stored emblem = %v, want %s", got.EmblemURL, upload.EmblemURL)
	}

	badKeys := []string{
		"",
		"emblems/other-swarm/" + strings.TrimPrefix(upload.Key, "emblems/"+swarm.ID+"/"),
		"emblems/" + swarm.ID + "/../secret.png",
		"emblems/" + swarm.ID + "/not-a-uuid.png",
		strings.TrimSuffix(upload.Key, ".webp") + ".gif",
	}
	for _, key := range badKeys {
		if _, err := svc.ConfirmEmblemUpload(ctx, "founder", swarm.ID, key); !errors.Is(err, ErrInvalidEmblemKey) {
			t.Errorf("confirm %q err = %v, want ErrInvalidEmblemKey", key, err)
		}
	}

	bucket.err = errors.New("connection reset")
	if _, err := svc.ConfirmEmblemUpload(ctx, "founder", swarm.ID, upload.Key); err == nil || errors.Is(err, ErrEmblemNotUploaded) {
		t.Errorf("head failure err = %v, want wrapped transport error", err)
	}
}
