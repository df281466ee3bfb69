package uploadee

import "errors"

// ErrInvalidArgument is returned when no file path is given.
var ErrInvalidArgument = errors.New("file path to upload must be specified")

// ErrFileNotFound is returned when the path does not name an existing file.
var ErrFileNotFound = errors.New("file to upload not found")

// ErrUpload matches every failure of the upload.ee protocol itself, as
// opposed to transport failures or bad input.
var ErrUpload = errors.New("upload.ee upload failed")

var (
	// ErrNoUploadID means the reservation page carried no upload id.
	ErrNoUploadID = &Error{State: ReservationRequested, Reason: "no upload id obtained for a new upload"}
	// ErrUploadRejected means the upload response did not point at the finish page.
	ErrUploadRejected = &Error{State: UploadSubmitted, Reason: "file was not accepted for an unknown reason"}
	// ErrLinkNotFound means the finish page carried no download link.
	ErrLinkNotFound = &Error{State: FinishPageFetched, Reason: "link to the uploaded file not found"}
)

// Error is a protocol failure. The service returns no structured error body,
// so Reason is fixed per failure point.
type Error struct {
	State  State
	Reason string
}

func (e *Error) Error() string {
	return "upload.ee: " + e.Reason
}

// Is makes every *Error match ErrUpload.
func (e *Error) Is(target error) bool {
	return target == ErrUpload
}
