package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"intake-agent/internal/domain"
)

const DefaultCollection = "cases"

// FirestoreStore keeps one document per case under a single collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestore creates a Firestore-backed case store for projectID.
func NewFirestore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("repository: projectID is required for Firestore store")
	}
	if strings.TrimSpace(collection) == "" {
		collection = DefaultCollection
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("repository: creating firestore client: %w", err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) caseDoc(caseNumber string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(caseNumber)
}

type messageDoc struct {
	Role    string `firestore:"role"`
	Content string `firestore:"content"`
}

type reportDoc struct {
	ProjectName       string   `firestore:"project_name"`
	ProjectSummary    string   `firestore:"project_summary"`
	KeyFeatures       []string `firestore:"key_features"`
	EstimatedTimeline string   `firestore:"estimated_timeline"`
	InterviewDate     string   `firestore:"interview_date"`
}

type caseDoc struct {
	CaseNumber     string       `firestore:"case_number"`
	Report         reportDoc    `firestore:"report"`
	FullTranscript []messageDoc `firestore:"full_transcript"`
	IdempotencyKey string       `firestore:"idempotency_key,omitempty"`
	CreatedAt      time.Time    `firestore:"created_at,serverTimestamp"`
}

// CreateCase writes the document with Create, so an existing case is never
// replaced. The returned time is Firestore's commit time.
func (s *FirestoreStore) CreateCase(ctx context.Context, rec domain.CaseRecord) (time.Time, error) {
	if strings.TrimSpace(rec.CaseNumber) == "" {
		return time.Time{}, errors.New("repository: CreateCase: case number is required")
	}
	res, err := s.caseDoc(rec.CaseNumber).Create(ctx, toCaseDoc(rec))
	if err != nil {
		return time.Time{}, fmt.Errorf("firestore CreateCase %s: %w", rec.CaseNumber, mapFirestoreError(err))
	}
	return res.UpdateTime.UTC(), nil
}

func (s *FirestoreStore) GetCase(ctx context.Context, caseNumber string) (domain.CaseRecord, error) {
	snap, err := s.caseDoc(caseNumber).Get(ctx)
	if err != nil {
		return domain.CaseRecord{}, fmt.Errorf("firestore GetCase %s: %w", caseNumber, mapFirestoreError(err))
	}
	var doc caseDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.CaseRecord{}, fmt.Errorf("firestore GetCase decode: %w", err)
	}
	return fromCaseDoc(doc), nil
}

// mapFirestoreError turns gRPC status codes into the store's sentinel errors.
func mapFirestoreError(err error) error {
	switch status.Code(err) {
	case codes.AlreadyExists:
		return domain.ErrCaseExists
	case codes.NotFound:
		return domain.ErrCaseNotFound
	default:
		return err
	}
}

func toCaseDoc(rec domain.CaseRecord) caseDoc {
	msgs := make([]messageDoc, 0, len(rec.FullTranscript))
	for _, m := range rec.FullTranscript {
		msgs = append(msgs, messageDoc{Role: m.Role, Content: m.Content})
	}
	return caseDoc{
		CaseNumber: rec.CaseNumber,
		Report: reportDoc{
			ProjectName:       rec.Report.ProjectName,
			ProjectSummary:    rec.Report.ProjectSummary,
			KeyFeatures:       append([]string(nil), rec.Report.KeyFeatures...),
			EstimatedTimeline: rec.Report.EstimatedTimeline,
			InterviewDate:     rec.Report.InterviewDate,
		},
		FullTranscript: msgs,
		IdempotencyKey: rec.IdempotencyKey,
	}
}

func fromCaseDoc(doc caseDoc) domain.CaseRecord {
	transcript := make(domain.Conversation, 0, len(doc.FullTranscript))
	for _, m := range doc.FullTranscript {
		transcript = append(transcript, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return domain.CaseRecord{
		CaseNumber: doc.CaseNumber,
		Report: domain.Report{
			ProjectName:       doc.Report.ProjectName,
			ProjectSummary:    doc.Report.ProjectSummary,
			KeyFeatures:       doc.Report.KeyFeatures,
			EstimatedTimeline: doc.Report.EstimatedTimeline,
			InterviewDate:     doc.Report.InterviewDate,
		},
		Timestamp:      doc.CreatedAt.UTC(),
		FullTranscript: transcript,
		IdempotencyKey: doc.IdempotencyKey,
	}
}
