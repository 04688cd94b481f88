package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"sort"
)

// FileUpload is one file of a MultipartForm.
type FileUpload struct {
	// FieldName is the form field name, e.g. "document" or "avatar".
	FieldName string

	// FileName is the file name sent with the part, e.g. "report.pdf".
	FileName string

	// Reader provides the file content.
	Reader io.Reader
}

// FileFromPath creates a FileUpload read from path when the request is
// encoded. A missing file fails the call with an EncodeError.
func FileFromPath(fieldName, path string) FileUpload {
	return FileUpload{
		FieldName: fieldName,
		FileName:  filepath.Base(path),
		Reader:    &lazyFileReader{path: path},
	}
}

// MultipartForm is a body argument encoded as multipart/form-data.
//
// Example:
//
//	svc.Invoke(ctx, "Upload", httpclient.MultipartForm{
//	    Fields: map[string]string{"title": "Q4 Report"},
//	    Files:  []httpclient.FileUpload{httpclient.FileFromPath("document", "/tmp/report.pdf")},
//	})
type MultipartForm struct {
	Fields map[string]string
	Files  []FileUpload
}

// FormEncoder encodes url.Values bodies as
// application/x-www-form-urlencoded and MultipartForm bodies as
// multipart/form-data. Other arguments go to the delegate.
//
// Example:
//
//	builder.Encoder(httpclient.NewFormEncoder(httpclient.JSONEncoder{}))
type FormEncoder struct {
	delegate Encoder
}

// NewFormEncoder creates a FormEncoder. A nil delegate means DefaultEncoder.
func NewFormEncoder(delegate Encoder) *FormEncoder {
	if delegate == nil {
		delegate = DefaultEncoder{}
	}
	return &FormEncoder{delegate: delegate}
}

// Encode implements Encoder.
func (e *FormEncoder) Encode(v any, shape Shape, tmpl *RequestTemplate) error {
	switch body := v.(type) {
	case url.Values:
		tmpl.SetBody([]byte(body.Encode()), "UTF-8")
		tmpl.RemoveHeader("Content-Type").Header("Content-Type", "application/x-www-form-urlencoded")
		return nil
	case MultipartForm:
		return encodeMultipart(&body, tmpl)
	case *MultipartForm:
		if body == nil {
			return nil
		}
		return encodeMultipart(body, tmpl)
	default:
		return e.delegate.Encode(v, shape, tmpl)
	}
}

// encodeMultipart writes fields in name order, then files in order.
func encodeMultipart(form *MultipartForm, tmpl *RequestTemplate) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	names := make([]string, 0, len(form.Fields))
	for name := range form.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writer.WriteField(name, form.Fields[name]); err != nil {
			return &EncodeError{Message: fmt.Sprintf("failed to write form field %q", name), Err: err}
		}
	}

	for _, file := range form.Files {
		if err := writeFilePart(writer, file); err != nil {
			return &EncodeError{Message: fmt.Sprintf("failed to write file %q", file.FileName), Err: err}
		}
	}

	if err := writer.Close(); err != nil {
		return &EncodeError{Message: "failed to close multipart body", Err: err}
	}

	tmpl.SetBody(buf.Bytes(), "")
	tmpl.RemoveHeader("Content-Type").Header("Content-Type", writer.FormDataContentType())
	return nil
}

func writeFilePart(writer *multipart.Writer, file FileUpload) error {
	reader := file.Reader
	if lazy, ok := reader.(*lazyFileReader); ok {
		f, err := os.Open(lazy.path)
		if err != nil {
			return err
		}
		defer f.Close()
		reader = f
	}

	part, err := writer.CreateFormFile(file.FieldName, file.FileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, reader)
	return err
}

// lazyFileReader defers opening a file until the body is encoded.
type lazyFileReader struct {
	path string
}

func (l *lazyFileReader) Read(_ []byte) (int, error) {
	return 0, io.EOF
}
