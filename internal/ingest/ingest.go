// Package ingest turns stored deal documents into model request parts.
package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"sealdeal-backend/internal/shared/storage/object"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEPPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

	// DefaultMaxInlineBytes bounds presentation payloads sent inline.
	DefaultMaxInlineBytes int64 = 20 << 20
)

type Kind string

const (
	KindPresentation Kind = "presentation"
	KindText         Kind = "text"
)

// Source identifies one stored document.
type Source struct {
	FileName    string
	StoragePath string
}

// Part is a processed document. Presentation parts carry raw bytes in Data;
// text parts carry Text.
type Part struct {
	Name string
	Kind Kind
	MIME string
	Data []byte
	Text string
}

type Ingestor struct {
	Store          object.ObjectStore
	MaxInlineBytes int64
}

// Ingest downloads and converts every document concurrently. The result keeps
// input order. The first failure cancels the remaining downloads.
func (in *Ingestor) Ingest(ctx context.Context, docs []Source) ([]Part, error) {
	parts := make([]Part, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		g.Go(func() error {
			raw, err := in.download(gctx, doc.StoragePath)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", doc.FileName, err)
			}
			part, err := in.Convert(doc.FileName, raw)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", doc.FileName, err)
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

func (in *Ingestor) download(ctx context.Context, key string) ([]byte, error) {
	body, err := in.Store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// Convert classifies a payload by file extension.
func (in *Ingestor) Convert(fileName string, raw []byte) (Part, error) {
	part := Part{Name: fileName, Kind: KindText}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return in.presentation(part, MIMEPDF, raw, pdfText)
	case ".pptx":
		return in.presentation(part, MIMEPPTX, raw, pptxText)
	case ".csv":
		text, err := csvText(raw)
		if err != nil {
			return Part{}, err
		}
		part.Text = text
	case ".xlsx":
		text, err := xlsxText(raw)
		if err != nil {
			return Part{}, err
		}
		part.Text = text
	case ".json":
		text, err := jsonText(raw)
		if err != nil {
			return Part{}, err
		}
		part.Text = text
	default:
		part.Text = utf8Text(raw)
	}
	return part, nil
}

func (in *Ingestor) presentation(part Part, mime string, raw []byte, fallback func([]byte) (string, error)) (Part, error) {
	limit := in.MaxInlineBytes
	if limit <= 0 {
		limit = DefaultMaxInlineBytes
	}
	if int64(len(raw)) <= limit {
		part.Kind = KindPresentation
		part.MIME = mime
		part.Data = raw
		return part, nil
	}
	text, err := fallback(raw)
	if err != nil {
		return Part{}, fmt.Errorf("oversize %s text fallback: %w", mime, err)
	}
	part.Text = text
	return part, nil
}

// Split separates presentation parts from text parts, keeping order.
func Split(parts []Part) (presentations, texts []Part) {
	for _, p := range parts {
		if p.Kind == KindPresentation {
			presentations = append(presentations, p)
		} else {
			texts = append(texts, p)
		}
	}
	return presentations, texts
}
