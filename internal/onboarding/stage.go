// Package onboarding derives the stage an applicant may be on from their
// application, profile and documents, and carries out the applicant's own
// writes: agreeing to the terms, saving the profile and uploading documents.
//
// The stage is never stored. Every call re-reads the three entities and
// re-runs the guard chain in Resolve.
package onboarding

import (
	"fmt"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/internal/apperr"
	"github.com/diewo77/go-onboarding/internal/models"
)

// Stage is one node of the onboarding flow.
type Stage string

const (
	StageLoggedOut         Stage = "logged_out"
	StageAgreement         Stage = "agreement"
	StageProfile           Stage = "profile"
	StageDocuments         Stage = "documents"
	StageReview            Stage = "review"
	StageEmployeeDashboard Stage = "employee_dashboard"
)

// Stages lists every stage in flow order.
func Stages() []Stage {
	return []Stage{StageLoggedOut, StageAgreement, StageProfile, StageDocuments, StageReview, StageEmployeeDashboard}
}

// Rank is the stage's position in the flow.
func (s Stage) Rank() int {
	switch s {
	case StageLoggedOut:
		return 0
	case StageAgreement:
		return 1
	case StageProfile:
		return 2
	case StageDocuments:
		return 3
	case StageReview:
		return 4
	case StageEmployeeDashboard:
		return 5
	}
	return -1
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool { return s.Rank() >= 0 }

// AtLeast reports whether s is other or a later stage.
func (s Stage) AtLeast(other Stage) bool { return s.Rank() >= other.Rank() }

// ParseStage converts a route segment into a Stage.
func ParseStage(v string) (Stage, error) {
	s := Stage(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown stage %q", v)
	}
	return s, nil
}

// Snapshot is everything the guard chain looks at. A nil Application or
// Profile means the row does not exist; missing document rows count as
// not uploaded.
type Snapshot struct {
	Principal   auth.Principal
	Application *models.Application
	Profile     *models.Profile
	Documents   []models.Document
}

// Resolve returns the single stage the snapshot allows. Guards are evaluated
// in order and the first unmet one wins. It is pure and total.
func Resolve(s Snapshot) Stage {
	switch {
	case !s.Principal.Authenticated():
		return StageLoggedOut
	case s.Application == nil || !s.Application.HasAgreedToTerms:
		return StageAgreement
	case !s.Profile.Complete():
		return StageProfile
	case !RequiredDocumentsUploaded(s.Documents):
		return StageDocuments
	}
	return stageForStatus(s.Application.Status)
}

func stageForStatus(st models.ApplicationStatus) Stage {
	switch st {
	case models.StatusSelected:
		return StageEmployeeDashboard
	case models.StatusPending, models.StatusUnderReview, models.StatusInterviewScheduled, models.StatusRejected:
		return StageReview
	}
	// unknown statuses never unlock the dashboard
	return StageReview
}

// RequiredDocumentsUploaded reports whether every required slot has left
// not_uploaded. Rejected and verified documents count as uploaded.
func RequiredDocumentsUploaded(docs []models.Document) bool {
	byType := models.IndexByType(docs)
	for _, t := range models.RequiredDocumentTypes() {
		d, ok := byType[t]
		if !ok || !d.Uploaded() {
			return false
		}
	}
	return true
}

// Transitions returns the stages reachable from s in one event, s included.
// Signing out is possible from every authenticated stage, and an admin moving
// a selected applicant back to rejected takes the dashboard back to review.
func Transitions(s Stage) []Stage {
	switch s {
	case StageLoggedOut:
		return []Stage{StageLoggedOut, StageAgreement, StageProfile, StageDocuments, StageReview, StageEmployeeDashboard}
	case StageAgreement:
		return []Stage{StageAgreement, StageProfile, StageLoggedOut}
	case StageProfile:
		return []Stage{StageProfile, StageDocuments, StageLoggedOut}
	case StageDocuments:
		return []Stage{StageDocuments, StageReview, StageLoggedOut}
	case StageReview:
		return []Stage{StageReview, StageEmployeeDashboard, StageLoggedOut}
	case StageEmployeeDashboard:
		return []Stage{StageEmployeeDashboard, StageReview, StageLoggedOut}
	}
	return nil
}

// Allowed reports whether to is in Transitions(from).
func Allowed(from, to Stage) bool {
	for _, s := range Transitions(from) {
		if s == to {
			return true
		}
	}
	return false
}

// StageError reports a request for a stage other than the resolved one.
type StageError struct {
	Requested Stage
	Redirect  Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s not reachable, current stage is %s", e.Requested, e.Redirect)
}

// RedirectTo names the stage the client should show instead.
func (e *StageError) RedirectTo() string { return string(e.Redirect) }

// Check returns nil when requested is the resolved stage. Otherwise it returns
// a stage_not_allowed error, or unauthorized when nobody is signed in, both
// carrying the redirect target.
func Check(s Snapshot, requested Stage) error {
	resolved := Resolve(s)
	if requested == resolved {
		return nil
	}
	se := &StageError{Requested: requested, Redirect: resolved}
	if resolved == StageLoggedOut {
		return apperr.New(apperr.CodeUnauthorized, "sign in required", se)
	}
	return apperr.New(apperr.CodeStageNotAllowed, se.Error(), se)
}

// StepState is the progress indicator state of one step.
type StepState string

const (
	StepCompleted StepState = "completed"
	StepCurrent   StepState = "current"
	StepUpcoming  StepState = "upcoming"
)

// Step is one entry of the progress indicator.
type Step struct {
	Stage Stage     `json:"stage"`
	Name  string    `json:"name"`
	State StepState `json:"state"`
}

var stepNames = []struct {
	stage Stage
	name  string
}{
	{StageAgreement, "Agreement"},
	{StageProfile, "Profile"},
	{StageDocuments, "Documents"},
	{StageReview, "Review"},
}

// Steps renders the four-step progress indicator for the current stage.
func Steps(current Stage) []Step {
	steps := make([]Step, 0, len(stepNames))
	for _, sn := range stepNames {
		state := StepUpcoming
		switch {
		case current == StageLoggedOut:
		case sn.stage == current:
			state = StepCurrent
		case current.Rank() > sn.stage.Rank():
			state = StepCompleted
		}
		steps = append(steps, Step{Stage: sn.stage, Name: sn.name, State: state})
	}
	return steps
}

// StatusMessage is the text shown to the applicant while in review.
func StatusMessage(st models.ApplicationStatus) string {
	switch st {
	case models.StatusPending:
		return "Your application has been received and is pending review."
	case models.StatusUnderReview:
		return "Your application is currently under review by our HR team."
	case models.StatusInterviewScheduled:
		return "Congratulations! Your interview has been scheduled. Please check your email for details."
	case models.StatusSelected:
		return "Congratulations! You have been selected. Please check your dashboard for further instructions."
	case models.StatusRejected:
		return "We regret to inform you that your application has not been selected at this time."
	}
	return "Your application is being processed."
}
