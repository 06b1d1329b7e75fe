package certificate

import (
	"bytes"
	"context"
	"html/template"

	"github.com/parishhub/digitalschool/internal/storage"
)

// BlobRenderer writes an HTML certificate into the blob store under a key
// derived from the enrollment id, so retries and races overwrite the same
// artifact instead of accumulating copies.
type BlobRenderer struct {
	blobs storage.BlobStore
	tmpl  *template.Template
}

func NewBlobRenderer(blobs storage.BlobStore) *BlobRenderer {
	return &BlobRenderer{
		blobs: blobs,
		tmpl:  template.Must(template.New("certificate").Parse(certificateHTML)),
	}
}

func (r *BlobRenderer) Render(ctx context.Context, d Data) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, d); err != nil {
		return "", err
	}
	key := "certificates/" + d.EnrollmentID + ".html"
	if _, err := r.blobs.Put(ctx, key, &buf); err != nil {
		return "", err
	}
	return r.blobs.SignedURL(key)
}

const certificateHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Certificate of Completion</title>
<style>
  body { font-family: Georgia, serif; text-align: center; margin: 4em; }
  .frame { border: 6px double {{if .Branding.AccentColor}}{{.Branding.AccentColor}}{{else}}#2c3e50{{end}}; padding: 3em; }
  .name { font-size: 2em; margin: 0.5em 0; }
  .seal { margin-top: 2em; font-variant: small-caps; }
  .signature { margin-top: 3em; border-top: 1px solid #999; display: inline-block; padding-top: 0.4em; }
</style>
</head>
<body class="{{.Branding.Theme}}">
<div class="frame">
  <h1>Certificate of Completion</h1>
  <p>This certifies that</p>
  <p class="name">{{.LearnerName}}</p>
  <p>has completed the course</p>
  <h2>{{.CourseTitle}}</h2>
  <p>on {{.CompletedAt.Format "January 2, 2006"}}</p>
  {{if .Branding.SealText}}<div class="seal">{{.Branding.SealText}}</div>{{end}}
  {{if .Branding.SignatureText}}<div class="signature">{{.Branding.SignatureText}}</div>{{end}}
</div>
</body>
</html>
`
