package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modcheck/pkg/config"
	"github.com/platinummonkey/modcheck/pkg/finding"
)

func sampleOutcome() *finding.Outcome {
	results := []finding.Result{
		{
			Module: ":app", RuleID: "unused-dependency", Kind: "fixable", Action: "remove",
			Dependency: ":core", Configuration: "implementation",
			Message: "implementation(:core) is not used", Position: &finding.Position{Row: 7, Column: 3},
			Fixed: true, File: "/repo/app/build.gradle.kts",
		},
		{
			Module: ":app", RuleID: "redundant-dependency", Kind: "fixable", Action: "remove",
			Dependency: ":model", Configuration: "api", Source: "api(:core)",
			Message: "api(:model) is already provided, 50% of the time", Position: &finding.Position{Row: 9, Column: 3},
			File: "/repo/app/build.gradle.kts",
		},
		{
			Module: ":lib", RuleID: "project-depth", Kind: "report-only", Action: "report",
			Message: "depth 2", File: "/repo/lib/build.gradle",
		},
	}
	return finding.NewOutcome("run-1", results, []finding.ModuleError{{Module: ":broken", Err: errors.New("boom")}}, nil)
}

func TestNewRenderer(t *testing.T) {
	tests := []struct {
		format  string
		want    interface{}
		wantErr bool
	}{
		{format: "", want: &TextRenderer{}},
		{format: "text", want: &TextRenderer{}},
		{format: "json", want: &JSONRenderer{}},
		{format: "github", want: &GitHubRenderer{}},
		{format: "sarif", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			r, err := NewRenderer(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, r)
		})
	}
}

func TestTextRenderer(t *testing.T) {
	r, err := NewRenderer("text", WithRoot("/repo"), WithVerbose(true))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleOutcome()))
	out := buf.String()

	assert.Contains(t, out, ":app:\n")
	assert.Contains(t, out, "  app/build.gradle.kts:7:3: [unused-dependency] implementation(:core) is not used (fixed)\n")
	assert.Contains(t, out, "[redundant-dependency] api(:model) is already provided, 50% of the time (not fixed)")
	assert.Contains(t, out, "    Source: api(:core)\n")
	assert.Contains(t, out, "  lib/build.gradle: [project-depth] depth 2 (info)\n")
	assert.Contains(t, out, "error: :broken: boom")
	assert.Contains(t, out, "  Unfixed:       1\n")
	assert.NotContains(t, out, "No unfixed")
}

func TestTextRenderer_Clean(t *testing.T) {
	r, err := NewRenderer("text")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, finding.NewOutcome("run-2", nil, nil, nil)))
	assert.Contains(t, buf.String(), "No unfixed dependency issues")
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONRenderer{}.Render(&buf, sampleOutcome()))

	var doc struct {
		RunID        string           `json:"runId"`
		Results      []finding.Result `json:"results"`
		ModuleErrors []string         `json:"moduleErrors"`
		Summary      Summary          `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "run-1", doc.RunID)
	assert.Len(t, doc.Results, 3)
	assert.Equal(t, []string{":broken: boom"}, doc.ModuleErrors)
	assert.Equal(t, Summary{Results: 3, Fixed: 1, Unfixed: 1, ModuleErrors: 1, Failed: true}, doc.Summary)
}

func TestJSONRenderer_FatalError(t *testing.T) {
	var buf bytes.Buffer
	o := finding.NewOutcome("run-3", nil, nil, errors.New("dependency cycle detected: :a -> :b -> :a"))
	require.NoError(t, JSONRenderer{}.Render(&buf, o))
	assert.Contains(t, buf.String(), `"results": []`)
	assert.Contains(t, buf.String(), `"error": "dependency cycle detected: :a -> :b -> :a"`)
}

func TestGitHubRenderer(t *testing.T) {
	r, err := NewRenderer("github", WithRoot("/repo"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleOutcome()))
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)

	assert.Equal(t, "::error file=app/build.gradle.kts,line=9,col=3,title=redundant-dependency::[redundant-dependency] api(:model) is already provided, 50%25 of the time (not fixed)", string(lines[0]))
	assert.Equal(t, "::notice file=app/build.gradle.kts,line=7,col=3,title=unused-dependency::[unused-dependency] implementation(:core) is not used (fixed)", string(lines[1]))
	assert.Equal(t, "::notice file=lib/build.gradle,title=project-depth::[project-depth] depth 2 (info)", string(lines[2]))
	assert.Equal(t, "::error:::broken: boom", string(lines[3]))
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Publisher_Publish(t *testing.T) {
	client := &fakePutter{}
	p := NewS3PublisherWithClient(client, "reports", "ci/modcheck")

	key, err := p.Publish(context.Background(), sampleOutcome())
	require.NoError(t, err)
	assert.Equal(t, "ci/modcheck/run-1.json", key)
	assert.Equal(t, "reports", aws.ToString(client.input.Bucket))
	assert.Equal(t, key, aws.ToString(client.input.Key))
	assert.Equal(t, "application/json", aws.ToString(client.input.ContentType))
	assert.Equal(t, "run-1", client.input.Metadata["run-id"])
	assert.Len(t, client.input.Metadata["checksum-sha256"], 64)
	assert.Contains(t, string(client.body), `"runId": "run-1"`)
}

func TestS3Publisher_PublishError(t *testing.T) {
	client := &fakePutter{err: errors.New("access denied")}
	p := NewS3PublisherWithClient(client, "reports", "")

	_, err := p.Publish(context.Background(), sampleOutcome())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://reports/run-1.json")
}

func TestNewS3Publisher_RequiresBucket(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), config.S3Config{})
	assert.Error(t, err)
}

func TestNewS3Publisher_StaticCredentials(t *testing.T) {
	p, err := NewS3Publisher(context.Background(), config.S3Config{
		Bucket:       "reports",
		Prefix:       "runs",
		Region:       "us-east-1",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: true,
		AccessKey:    "minio",
		SecretKey:    "minio123",
	})
	require.NoError(t, err)
	assert.Equal(t, "runs/abc.json", p.Key("abc"))
}
