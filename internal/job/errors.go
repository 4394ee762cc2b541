package job

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscan/internal/model"
)

// Stage sentinels wrapped onto pipeline failures so callers can tell which
// phase broke without parsing messages.
var (
	ErrExtraction     = eris.New("job: extraction failed")
	ErrClassification = eris.New("job: classification failed")
	ErrPersistence    = eris.New("job: persistence failed")
)

// InvalidStateError reports a lifecycle transition attempted from a state
// that does not permit it. The job is left untouched.
type InvalidStateError struct {
	JobID  string
	Status model.JobStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("job %s is %s, not pending", e.JobID, e.Status)
}

// IsInvalidState reports whether err carries an InvalidStateError.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// MissingInputError reports a contact that cannot be scanned because it has
// no business card image to work from.
type MissingInputError struct {
	ContactID string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("contact %s has no business card url", e.ContactID)
}

// IsMissingInput reports whether err carries a MissingInputError.
func IsMissingInput(err error) bool {
	var mie *MissingInputError
	return errors.As(err, &mie)
}
