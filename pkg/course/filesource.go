package course

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// courseSchema guards the shape of course documents before unmarshaling.
// Structural rules (orchestration agent requirements, policy conflicts)
// are checked separately by Validate.
const courseSchema = `{
	"type": "object",
	"required": ["id", "name", "agents"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"agents": {
			"type": "array",
			"items": {"$ref": "#/definitions/agent"}
		},
		"orchestration": {"$ref": "#/definitions/agent"},
		"policy": {
			"type": "object",
			"properties": {
				"allow_primary_backend": {"type": "boolean"},
				"preferred_backend": {"type": "string"},
				"fallback_enabled": {"type": "boolean"}
			}
		}
	},
	"definitions": {
		"agent": {
			"type": "object",
			"required": ["id", "name", "kind", "instructions"],
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"name": {"type": "string", "minLength": 1},
				"kind": {"enum": ["subject", "orchestration"]},
				"instructions": {"type": "string", "minLength": 1},
				"rag_enabled": {"type": "boolean"},
				"material_ids": {"type": "array", "items": {"type": "string"}},
				"config": {
					"type": "object",
					"properties": {
						"model": {"type": "string"},
						"temperature": {"type": "number", "minimum": 0, "maximum": 1},
						"max_tokens": {"type": "integer", "minimum": 0}
					}
				}
			}
		}
	}
}`

// ErrCourseNotFound is returned for unknown course ids.
var ErrCourseNotFound = fmt.Errorf("course not found")

// FileSource is a read-only course catalogue backed by a directory of JSON
// documents, one course per file.
type FileSource struct {
	dir            string
	primaryBackend string
	logger         zerolog.Logger
	schema         *gojsonschema.Schema

	mu      sync.RWMutex
	courses map[string]Course
}

// NewFileSource loads and validates every course document under dir.
func NewFileSource(dir, primaryBackend string, logger zerolog.Logger) (*FileSource, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(courseSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile course schema: %w", err)
	}

	s := &FileSource{
		dir:            dir,
		primaryBackend: primaryBackend,
		logger:         logger.With().Str("component", "course_source").Logger(),
		schema:         schema,
		courses:        make(map[string]Course),
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	return s, nil
}

// Reload re-reads the catalogue directory. A document that fails schema or
// structural validation fails the whole reload; a half-valid catalogue is
// worse than a stale one.
func (s *FileSource) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read course directory: %w", err)
	}

	courses := make(map[string]Course)

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		crs, err := s.loadCourse(path)
		if err != nil {
			return fmt.Errorf("course document %s: %w", entry.Name(), err)
		}

		if _, exists := courses[crs.ID]; exists {
			return &ConfigurationError{Reason: fmt.Sprintf("duplicate course id %q", crs.ID)}
		}
		courses[crs.ID] = crs
	}

	s.mu.Lock()
	s.courses = courses
	s.mu.Unlock()

	s.logger.Info().Int("courses", len(courses)).Msg("course catalogue loaded")
	return nil
}

func (s *FileSource) loadCourse(path string) (Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Course{}, err
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Course{}, fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		return Course{}, &ConfigurationError{Reason: result.Errors()[0].String()}
	}

	var crs Course
	if err := json.Unmarshal(data, &crs); err != nil {
		return Course{}, fmt.Errorf("failed to unmarshal: %w", err)
	}

	// Course ids on agents follow the document.
	for i := range crs.Agents {
		crs.Agents[i].CourseID = crs.ID
	}
	if crs.Orchestration != nil {
		crs.Orchestration.CourseID = crs.ID
	}

	if err := crs.Validate(s.primaryBackend); err != nil {
		return Course{}, err
	}

	return crs, nil
}

// Course implements Source.
func (s *FileSource) Course(_ context.Context, courseID string) (Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	crs, ok := s.courses[courseID]
	if !ok {
		return Course{}, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
	}
	return crs, nil
}

// List returns all loaded course ids.
func (s *FileSource) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.courses))
	for id := range s.courses {
		ids = append(ids, id)
	}
	return ids
}
