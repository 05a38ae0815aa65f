package core

// error_messages.go maps technical errors to user-friendly messages with
// codes for support reference. The command line prints them on failure and
// the HTTP API returns them in JSON error bodies.
//
// Error codes are grouped by category:
//
//	DB001-DB007     database constraints and connectivity
//	IMP001-IMP005   import run (abort, busy, unknown format, dialog)
//	VAL001-VAL006   row and master data validation
//	FILE001-FILE005 file handling and encodings
//	REQ001-REQ003   cancelled or timed out requests
//	ERR000          fallback; check the logs for the technical error

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// messageRule maps lower-case substrings of an error text to one message.
type messageRule struct {
	patterns []string
	msg      UserMessage
}

// messageRules are tried in order and the first rule with a matching
// pattern wins, so specific rules come before general ones ("context
// deadline exceeded" before "timeout").
var messageRules = []messageRule{
	// Database
	{[]string{"duplicate key"}, UserMessage{
		"A flight with this ID already exists",
		"Re-run the import in reject mode or remove the dbid column",
		"DB001"}},
	{[]string{"unique constraint", "violates unique"}, UserMessage{
		"A duplicate value was found",
		"Check the logbook for duplicate pilots or planes",
		"DB002"}},
	{[]string{"foreign key constraint", "violates foreign key"}, UserMessage{
		"Referenced pilot, plane or launch method does not exist",
		"Create the missing master data first",
		"DB003"}},
	{[]string{"connection refused", "no such host"}, UserMessage{
		"Unable to connect to database",
		"Check DATABASE_URL and try again in a few moments",
		"DB004"}},
	{[]string{"connection reset", "broken pipe"}, UserMessage{
		"Database connection was interrupted",
		"Please try again",
		"DB005"}},
	{[]string{"no such table", "sqlstate 42p01"}, UserMessage{
		"The logbook schema is missing or outdated",
		"Run 'flightlog migrate' and try again",
		"DB006"}},
	{[]string{"database is locked", "sqlite_busy", "deadlock"}, UserMessage{
		"The logbook database is locked by another program",
		"Close other programs using the logbook and try again",
		"DB007"}},

	// Import run
	{[]string{"aborted by operator"}, UserMessage{
		"Import was aborted",
		"Nothing was imported. Start a new import when ready",
		"IMP001"}},
	{[]string{"import already in progress"}, UserMessage{
		"Another import is running",
		"Please wait for it to finish and try again",
		"IMP002"}},
	{[]string{"unknown import format"}, UserMessage{
		"Unknown import format",
		"Run 'flightlog formats' to list the available formats",
		"IMP003"}},
	{[]string{"interactive mode"}, UserMessage{
		"Interactive mode needs a terminal",
		"Use --mode reject or --mode ignore for unattended imports",
		"IMP004"}},
	{[]string{"no valid answer"}, UserMessage{
		"No valid answer was given",
		"Answer with one of the letters shown in brackets",
		"IMP005"}},

	// Rows and master data
	{[]string{"invalid date"}, UserMessage{
		"Invalid date or time detected",
		"Check --date-format and --time-format against the file",
		"VAL001"}},
	{[]string{"invalid number"}, UserMessage{
		"Invalid number format detected",
		"Use plain digits for the number of landings",
		"VAL002"}},
	{[]string{"mandatory field"}, UserMessage{
		"Required column is missing from the file",
		"Check that the header matches the selected format",
		"VAL003"}},
	{[]string{"unknown flight type"}, UserMessage{
		"Flight type is not in the allowed list",
		"Check the flight type column for typos",
		"VAL004"}},
	{[]string{"unknown flight mode"}, UserMessage{
		"Flight mode is not in the allowed list",
		"Check the mode column for typos",
		"VAL004"}},
	{[]string{"unknown pilot"}, UserMessage{
		"Pilot is not in the logbook",
		"Add the pilot or map the name in the alias file",
		"VAL005"}},
	{[]string{"unknown plane"}, UserMessage{
		"Plane is not in the logbook",
		"Add the plane or map the registration in the alias file",
		"VAL005"}},
	{[]string{"unknown launch method"}, UserMessage{
		"Launch method is not in the logbook",
		"Map the launch method in the alias file",
		"VAL005"}},
	{[]string{"alias file"}, UserMessage{
		"The alias file could not be read",
		"Check the line named in the error",
		"VAL006"}},

	// Files
	{[]string{"file too large", "request body too large"}, UserMessage{
		"File exceeds maximum size limit",
		"Split the file into smaller chunks",
		"FILE001"}},
	{[]string{"invalid csv"}, UserMessage{
		"File is not a valid CSV",
		"Check --separator against the file",
		"FILE002"}},
	{[]string{"encoding error", "unknown encoding"}, UserMessage{
		"File encoding is not supported",
		"Pass a known --encoding such as utf-8 or windows-1252",
		"FILE003"}},
	{[]string{"no file provided"}, UserMessage{
		"No file was selected",
		"Please select a CSV file to import",
		"FILE004"}},
	{[]string{"empty file"}, UserMessage{
		"The file is empty",
		"Please provide a CSV file with a header and data rows",
		"FILE005"}},

	// Requests
	{[]string{"context canceled"}, UserMessage{
		"Request was cancelled",
		"Please try again",
		"REQ001"}},
	{[]string{"context deadline exceeded"}, UserMessage{
		"Request timed out",
		"Import a smaller file or raise UPLOAD_TIMEOUT",
		"REQ002"}},
	{[]string{"timeout", "timed out"}, UserMessage{
		"Operation timed out",
		"Please try again later",
		"REQ003"}},
}

// defaultMessage is returned when no rule matches (ERR000). Support staff
// should look up the technical error in the logs when users report it.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// matchText returns the text the rules are matched against. Errors of this
// package are classified by type first, so the wrapping context of a
// message cannot shadow them.
func matchText(err error) string {
	var (
		re *RecordError
		le *LookupError
		mf *MissingFieldError
	)
	switch {
	case errors.As(err, &re):
		return "unknown " + re.Param
	case errors.As(err, &le):
		return "unknown " + le.Table
	case errors.As(err, &mf):
		return "mandatory field"
	}
	return strings.ToLower(err.Error())
}

// MapError converts a technical error to a user-friendly message. Unknown
// errors get the generic ERR000 message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	text := matchText(err)
	for _, rule := range messageRules {
		for _, p := range rule.patterns {
			if strings.Contains(text, p) {
				return rule.msg
			}
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback. Callers print the raw error otherwise.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err and keeps it for logging via Unwrap. It returns nil
// if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
