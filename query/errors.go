package query

import "errors"

var (
	// ErrRepositoryRequired is returned when a chunk repository is not provided.
	ErrRepositoryRequired = errors.New("chunk repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrGeneratorRequired is returned when Answer is called without a generator.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question must not be empty")
)
