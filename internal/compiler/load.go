package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dynquery/internal/schema"
)

// LoadMode controls how errors are handled during declaration loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Load error codes (E001-E009), shared by every command that reads a
// declarations directory.
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // file write error
)

// LoadResult contains the results of loading declarations from a directory.
type LoadResult struct {
	Catalog   *schema.Catalog
	CUEValue  cue.Value // raw value for additional processing
	FileCount int
}

// LoadError represents an error that occurred during loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDir loads the CUE package in dir and compiles its entity,
// projection, and storage declarations into a catalog.
//
// A nil result means the directory could not be read or built at all.
// Compile failures come back alongside a partial result; in fail-fast
// mode only the first is returned.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	cat, compileErrs := CompileCatalog(value)
	result := &LoadResult{
		Catalog:   cat,
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	if len(errs) == 0 && len(cat.Entities) == 0 && len(cat.Storages) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no entities or storages found in specs"})
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: err.Error(),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// MapFieldToErrorCode maps a compile error field path to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case strings.HasSuffix(field, ".type") && strings.HasPrefix(field, "fields."):
		return ErrInvalidFieldType
	case strings.HasSuffix(field, ".type") && strings.HasPrefix(field, "methods."):
		return ErrInvalidParamType
	case field == "fields" || strings.HasPrefix(field, "fields."):
		return ErrEntityNoFields
	case strings.HasPrefix(field, "relations."):
		return ErrUnknownRelation
	case field == "entity":
		return ErrStorageUnknownEntity
	case strings.HasSuffix(field, ".returns"):
		return ErrInvalidResultKind
	default:
		return ErrCodeGeneric
	}
}
