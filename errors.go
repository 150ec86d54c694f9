package record

import (
	"errors"
	"fmt"

	"gorm.io/record/logger"
)

var (
	// ErrRecordNotFound record not found error
	ErrRecordNotFound = logger.ErrRecordNotFound
	// ErrMassAssignment a guarded key was filled on a totally guarded model
	ErrMassAssignment = errors.New("mass assignment")
	// ErrRelationNotFound no relation registered under the name
	ErrRelationNotFound = errors.New("relation not found")
	// ErrInvalidRelation the relation func did not return a usable relation
	ErrInvalidRelation = errors.New("invalid relation")
	// ErrMethodNotFound no resolver handled the method
	ErrMethodNotFound = errors.New("method not found")
	// ErrMissingPrimaryKey the class has no primary key
	ErrMissingPrimaryKey = errors.New("primary key required")
	// ErrChunkColumnMissing the chunk column is not in the result rows
	ErrChunkColumnMissing = errors.New("chunk column missing from results")
	// ErrModelRequired no model class bound to the builder
	ErrModelRequired = errors.New("model required")
	// ErrUnknownMorphType no class registered for a morph type
	ErrUnknownMorphType = errors.New("unknown morph type")
	// ErrUnsupportedRelation the relation cannot be used for the requested operation
	ErrUnsupportedRelation = errors.New("unsupported relation")
)

// ModelNotFoundError FindOrFail, FirstOrFail and FindManyOrFail found nothing, or not all ids
type ModelNotFoundError struct {
	Class string
	IDs   []interface{}
}

func (e *ModelNotFoundError) Error() string {
	if len(e.IDs) == 0 {
		return fmt.Sprintf("no query results for model [%s]", e.Class)
	}
	return fmt.Sprintf("no query results for model [%s] %v", e.Class, e.IDs)
}

func (e *ModelNotFoundError) Unwrap() error {
	return ErrRecordNotFound
}

// MassAssignmentError a guarded key was filled while the model is totally guarded
type MassAssignmentError struct {
	Class string
	Key   string
}

func (e *MassAssignmentError) Error() string {
	return fmt.Sprintf("add [%s] to fillable property to allow mass assignment on [%s]", e.Key, e.Class)
}

func (e *MassAssignmentError) Unwrap() error {
	return ErrMassAssignment
}

// RelationNotFoundError the class has no relation with the name
type RelationNotFoundError struct {
	Class    string
	Relation string
}

func (e *RelationNotFoundError) Error() string {
	return fmt.Sprintf("call to undefined relationship [%s] on model [%s]", e.Relation, e.Class)
}

func (e *RelationNotFoundError) Unwrap() error {
	return ErrRelationNotFound
}

// InvalidRelationError the relation func returned nil or a relation without a related model
type InvalidRelationError struct {
	Class    string
	Relation string
	Nil      bool
}

func (e *InvalidRelationError) Error() string {
	if e.Nil {
		return fmt.Sprintf("%s::%s must return a relationship instance, but nil was returned", e.Class, e.Relation)
	}
	return fmt.Sprintf("%s::%s must return a relationship instance with a related model", e.Class, e.Relation)
}

func (e *InvalidRelationError) Unwrap() error {
	return ErrInvalidRelation
}

// MethodNotFoundError Call could not resolve the method
type MethodNotFoundError struct {
	Class  string
	Method string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("call to undefined method %s::%s()", e.Class, e.Method)
}

func (e *MethodNotFoundError) Unwrap() error {
	return ErrMethodNotFound
}
