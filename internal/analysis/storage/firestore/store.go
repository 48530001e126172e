// Package firestore persists screenings in Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rbright/mindwell/internal/analysis"
)

// Collection holds one document per screening, keyed by screening id.
const Collection = "screenings"

// ErrDuplicate is returned when a screening id was already stored.
var ErrDuplicate = errors.New("screening already stored")

// Store is a Firestore-backed analysis.Store.
type Store struct {
	client *firestore.Client
}

// NewStore opens a client for projectID. FIRESTORE_EMULATOR_HOST is honored
// by the client library.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

type screeningDoc struct {
	Summary          string    `firestore:"summary"`
	RiskScore        float64   `firestore:"risk_score"`
	ClinicalAnalysis string    `firestore:"clinical_analysis"`
	Reasoning        string    `firestore:"reasoning"`
	Analyzer         string    `firestore:"analyzer"`
	Source           string    `firestore:"source"`
	Timestamp        time.Time `firestore:"timestamp"`
}

func toDoc(record analysis.Screening) screeningDoc {
	return screeningDoc{
		Summary:          record.Summary,
		RiskScore:        record.Score,
		ClinicalAnalysis: record.Validation,
		Reasoning:        record.Reasoning,
		Analyzer:         record.Analyzer,
		Source:           record.Source,
		Timestamp:        record.CreatedAt,
	}
}

func fromDoc(id string, doc screeningDoc) analysis.Screening {
	return analysis.Screening{
		ID:         id,
		Summary:    doc.Summary,
		Score:      doc.RiskScore,
		Validation: doc.ClinicalAnalysis,
		Reasoning:  doc.Reasoning,
		Analyzer:   doc.Analyzer,
		Source:     doc.Source,
		CreatedAt:  doc.Timestamp,
	}
}

func (s *Store) screenings() *firestore.CollectionRef {
	return s.client.Collection(Collection)
}

// Save creates the screening document.
func (s *Store) Save(ctx context.Context, record analysis.Screening) error {
	_, err := s.screenings().Doc(record.ID).Create(ctx, toDoc(record))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %s", ErrDuplicate, record.ID)
		}
		return fmt.Errorf("firestore save screening: %w", err)
	}
	return nil
}

// List returns up to limit screenings, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]analysis.Screening, error) {
	query := s.screenings().OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []analysis.Screening
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore list screenings: %w", err)
		}
		var doc screeningDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode screening %s: %w", snap.Ref.ID, err)
		}
		out = append(out, fromDoc(snap.Ref.ID, doc))
	}
	return out, nil
}

// Ping reads at most one document to confirm the database answers.
func (s *Store) Ping(ctx context.Context) error {
	iter := s.screenings().Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
