package sqrecord

import "github.com/liliang-cn/sqrecord/pkg/core"

// Errors returned by DB and Table, usable with errors.Is
var (
	ErrTableNotFound          = core.ErrTableNotFound
	ErrNotFound               = core.ErrNotFound
	ErrIndexOutOfRange        = core.ErrIndexOutOfRange
	ErrInvalidColumn          = core.ErrInvalidColumn
	ErrMissingPrimaryKey      = core.ErrMissingPrimaryKey
	ErrMissingPrimaryKeyValue = core.ErrMissingPrimaryKeyValue
	ErrMissingMatchValue      = core.ErrMissingMatchValue
	ErrAmbiguousMatch         = core.ErrAmbiguousMatch
	ErrNonUniformRecords      = core.ErrNonUniformRecords
	ErrIncompatibleTables     = core.ErrIncompatibleTables
	ErrStoreClosed            = core.ErrStoreClosed
	ErrInvalidConfig          = core.ErrInvalidConfig
)
