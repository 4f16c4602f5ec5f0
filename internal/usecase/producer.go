package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/semmidev/mongovault/internal/document"
	"github.com/semmidev/mongovault/internal/domain"
	"github.com/semmidev/mongovault/internal/snapshot"
)

// ProduceStats summarises one snapshot capture.
type ProduceStats struct {
	Databases   int
	Collections int
	Documents   int64
}

// Producer walks a Source and streams every selected collection into a
// snapshot.Sink.
type Producer struct {
	source domain.Source
	logger Logger
}

func NewProducer(source domain.Source, logger Logger) *Producer {
	return &Producer{source: source, logger: logger}
}

// Produce captures scope into sink. Any read error aborts the capture and is
// returned; the caller must discard whatever the sink received.
func (p *Producer) Produce(ctx context.Context, scope snapshot.Scope, sink snapshot.Sink) (ProduceStats, error) {
	var stats ProduceStats

	databases, err := p.databases(ctx, scope)
	if err != nil {
		return stats, err
	}
	if len(databases) == 0 {
		p.logger.Warnf("No databases to back up for %s", scope)
	}

	for _, db := range databases {
		collections, err := p.source.ListCollections(ctx, db)
		if err != nil {
			return stats, fmt.Errorf("list collections of %s: %w", db, err)
		}
		sort.Strings(collections)

		p.logger.Infof("[%s] Backing up %d collection(s)", db, len(collections))
		stats.Databases++

		for _, coll := range collections {
			if strings.HasPrefix(coll, "system.") {
				continue
			}
			n, err := p.collection(ctx, db, coll, sink)
			if err != nil {
				return stats, err
			}
			stats.Collections++
			stats.Documents += n
		}
	}

	return stats, nil
}

func (p *Producer) databases(ctx context.Context, scope snapshot.Scope) ([]string, error) {
	names, err := p.source.ListDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}

	var selected []string
	for _, name := range names {
		if scope.Includes(name) {
			selected = append(selected, name)
		}
	}
	sort.Strings(selected)
	return selected, nil
}

func (p *Producer) collection(ctx context.Context, db, coll string, sink snapshot.Sink) (int64, error) {
	indexes, err := p.source.ListIndexes(ctx, db, coll)
	if err != nil {
		return 0, fmt.Errorf("list indexes of %s.%s: %w", db, coll, err)
	}
	if err := sink.BeginCollection(ctx, db, coll, indexes); err != nil {
		return 0, err
	}

	var count int64
	err = p.source.ScanDocuments(ctx, db, coll, func(doc document.Document) error {
		count++
		return sink.WriteDocument(ctx, doc)
	})
	if err != nil {
		return count, fmt.Errorf("read %s.%s: %w", db, coll, err)
	}
	if err := sink.EndCollection(ctx); err != nil {
		return count, err
	}

	p.logger.Infof("[%s.%s] %d document(s), %d index(es)", db, coll, count, len(indexes))
	return count, nil
}
