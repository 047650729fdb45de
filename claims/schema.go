// Package claims holds the schema registry that gives claim content a name and a shape: which
// schema id a claim was issued under, and what fields its content is expected to carry.
package claims

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/logger"
	"github.com/Internet-of-People/mercury-rust-sub000/storage"
)

// ErrSchemaNotFound is returned when a claim names a schema id the registry has never seen.
var ErrSchemaNotFound = errors.New("claims: schema not found in registry")

// ErrContentInvalid is returned when a claim's content is missing one of its schema's required
// fields.
var ErrContentInvalid = errors.New("claims: content does not satisfy schema")

// Schema describes one claim shape: a human name and the set of top-level JSON fields its
// content must carry. This is deliberately not a full JSON-Schema validator -- it covers the
// "does this claim even have the fields its schema promises" check the vault needs before
// accepting a claim, not general-purpose schema validation.
type Schema struct {
	Id       string   `json:"id"`
	Version  int      `json:"version"`
	Name     string   `json:"name"`
	Required []string `json:"required"`
}

// Validate reports an error if content is not a JSON object carrying every field s.Required
// names.
func (s Schema) Validate(content json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(content, &fields); err != nil {
		return errors.Wrap(ErrContentInvalid, err.Error())
	}

	for _, name := range s.Required {
		if _, ok := fields[name]; !ok {
			return errors.Wrapf(ErrContentInvalid, "missing field %q", name)
		}
	}

	return nil
}

// Registry holds every schema known to this node, backed by a Storage folder the way the
// original implementation populated a schema directory on first run and re-read it on every
// lookup.
type Registry struct {
	backend storage.Storage
}

func NewRegistry(backend storage.Storage) *Registry {
	return &Registry{backend: backend}
}

func schemaKey(id string) string {
	return "schemas/" + id + ".json"
}

// Put stores or replaces a schema definition.
func (r *Registry) Put(ctx context.Context, schema Schema) error {
	b, err := json.Marshal(schema)
	if err != nil {
		return errors.Wrap(err, "claims: marshal schema")
	}

	if err := r.backend.Write(ctx, schemaKey(schema.Id), b, nil); err != nil {
		return errors.Wrap(err, "claims: write schema")
	}

	logger.InfoWithFields(ctx, []logger.Field{
		logger.String("schema_id", schema.Id),
		logger.Int("schema_version", schema.Version),
		logger.Strings("required_fields", schema.Required),
	}, "Registered claim schema")
	return nil
}

// Get fetches a schema by id.
func (r *Registry) Get(ctx context.Context, id string) (Schema, error) {
	b, err := r.backend.Read(ctx, schemaKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Schema{}, ErrSchemaNotFound
		}
		return Schema{}, errors.Wrap(err, "claims: read schema")
	}

	var schema Schema
	if err := json.Unmarshal(b, &schema); err != nil {
		return Schema{}, errors.Wrap(err, "claims: unmarshal schema")
	}

	return schema, nil
}

// List returns every registered schema id.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	keys, err := r.backend.List(ctx, "schemas/")
	if err != nil {
		return nil, errors.Wrap(err, "claims: list schemas")
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, trimSchemaKey(key))
	}
	return ids, nil
}

func trimSchemaKey(key string) string {
	const prefix = "schemas/"
	const suffix = ".json"

	s := key
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		s = s[len(prefix):]
	}
	if len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix {
		s = s[:len(s)-len(suffix)]
	}
	return s
}

// Validate looks up schemaId and validates content against it.
func (r *Registry) Validate(ctx context.Context, schemaId string, content json.RawMessage) error {
	schema, err := r.Get(ctx, schemaId)
	if err != nil {
		return err
	}
	return schema.Validate(content)
}
