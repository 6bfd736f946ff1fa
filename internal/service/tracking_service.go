package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/wilsbb/tor-accreditation-api/internal/dto"
	"github.com/wilsbb/tor-accreditation-api/internal/models"
	"github.com/wilsbb/tor-accreditation-api/internal/upstream"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
)

type submissionReader interface {
	GetLatestByApplicant(ctx context.Context, applicantID string) (*models.Submission, error)
	GetActiveByApplicant(ctx context.Context, applicantID string) (*models.Submission, error)
	ListByStage(ctx context.Context, stage models.Stage, limit, offset int) ([]models.Submission, error)
}

type entryReader interface {
	ListBySubmission(ctx context.Context, submissionID string, status models.CreditEvaluation) ([]models.SubjectEntry, error)
}

type summaryReader interface {
	GetBySubmission(ctx context.Context, submissionID string) (*models.FinalizedSummary, error)
	List(ctx context.Context, limit, offset int) ([]models.FinalizedSummary, error)
	ListEntries(ctx context.Context, submissionID string) ([]models.SummaryEntry, error)
}

type curriculumReader interface {
	List(ctx context.Context) ([]models.CurriculumSubject, error)
}

// TrackingService serves the read side of the workflow: the applicant
// progress tracker, the staff dashboards, and the finalized reports.
// Profile lookups go to the external profile store and degrade to a nil
// profile when it is unreachable.
type TrackingService struct {
	submissions submissionReader
	entries     entryReader
	summaries   summaryReader
	curriculum  curriculumReader
	profiles    upstream.ProfileSource
	cache       *CacheService
	cacheTTL    time.Duration
	logger      *zap.Logger
}

func NewTrackingService(
	submissions submissionReader,
	entries entryReader,
	summaries summaryReader,
	curriculum curriculumReader,
	profiles upstream.ProfileSource,
	cache *CacheService,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *TrackingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackingService{
		submissions: submissions,
		entries:     entries,
		summaries:   summaries,
		curriculum:  curriculum,
		profiles:    profiles,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// Progress maps the applicant's latest submission onto the tracker
// steps. Denied and Cancelled reset the tracker to zero so the
// applicant can submit again.
func (s *TrackingService) Progress(ctx context.Context, applicantID string) (*dto.ProgressResponse, error) {
	key := TrackingKey(applicantID, "progress")
	var cached dto.ProgressResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	submission, err := s.submissions.GetLatestByApplicant(ctx, applicantID)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Internal(err)
	}

	resp := &dto.ProgressResponse{ApplicantID: applicantID, Step: dto.ProgressNone}
	if submission != nil {
		resp.Stage = submission.Stage
		switch submission.Stage {
		case models.StageRequest:
			resp.Step = dto.ProgressRequest
		case models.StagePending:
			resp.Step = dto.ProgressPending
		case models.StageFinalized:
			resp.Step = dto.ProgressFinalized
		}
	}

	_ = s.cache.Set(ctx, key, resp, s.cacheTTL)
	return resp, nil
}

// ActiveDetails returns the applicant's open submission with its
// profile and evaluation rows.
func (s *TrackingService) ActiveDetails(ctx context.Context, applicantID string) (*dto.SubmissionDetails, error) {
	submission, err := s.submissions.GetActiveByApplicant(ctx, applicantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active accreditation request for this account")
		}
		return nil, appErrors.Internal(err)
	}

	entries, err := s.entries.ListBySubmission(ctx, submission.ID, "")
	if err != nil {
		return nil, appErrors.Internal(err)
	}

	return &dto.SubmissionDetails{
		Submission: *submission,
		Profile:    s.profile(ctx, applicantID),
		Entries:    entries,
	}, nil
}

// ListByStage returns the staff dashboard rows for one stage, each
// enriched with the applicant's profile.
func (s *TrackingService) ListByStage(ctx context.Context, stage models.Stage, limit, offset int) ([]dto.SubmissionListItem, error) {
	if !stage.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown stage: "+string(stage))
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	submissions, err := s.submissions.ListByStage(ctx, stage, limit, offset)
	if err != nil {
		return nil, appErrors.Internal(err)
	}

	items := make([]dto.SubmissionListItem, 0, len(submissions))
	for _, sub := range submissions {
		items = append(items, dto.SubmissionListItem{
			Submission: sub,
			Profile:    s.profile(ctx, sub.ApplicantID),
		})
	}
	return items, nil
}

// FinalizedList returns the finalized summaries, newest first.
func (s *TrackingService) FinalizedList(ctx context.Context, limit, offset int) ([]models.FinalizedSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	summaries, err := s.summaries.List(ctx, limit, offset)
	if err != nil {
		return nil, appErrors.Internal(err)
	}
	return summaries, nil
}

// FinalizedReport returns the frozen snapshot of one finalized
// submission.
func (s *TrackingService) FinalizedReport(ctx context.Context, submissionID string) (*dto.FinalizedReport, error) {
	summary, err := s.summaries.GetBySubmission(ctx, submissionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "finalized summary not found")
		}
		return nil, appErrors.Internal(err)
	}

	entries, err := s.summaries.ListEntries(ctx, submissionID)
	if err != nil {
		return nil, appErrors.Internal(err)
	}

	return &dto.FinalizedReport{Summary: *summary, Entries: entries}, nil
}

// Curriculum returns the institutional subject catalog used as a
// reference panel next to the evaluation table.
func (s *TrackingService) Curriculum(ctx context.Context) ([]models.CurriculumSubject, error) {
	key := "curriculum:all"
	var cached []models.CurriculumSubject
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	subjects, err := s.curriculum.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err)
	}

	_ = s.cache.Set(ctx, key, subjects, s.cacheTTL)
	return subjects, nil
}

func (s *TrackingService) profile(ctx context.Context, applicantID string) *models.ApplicantProfile {
	if s.profiles == nil {
		return nil
	}
	profile, err := s.profiles.FetchProfile(ctx, applicantID)
	if err != nil {
		s.logger.Warn("profile lookup failed",
			zap.String("applicant_id", applicantID),
			zap.Error(err))
		return nil
	}
	return profile
}
