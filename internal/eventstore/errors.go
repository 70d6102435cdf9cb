package eventstore

import "errors"

// ErrInvalidEvent はイベントがEvent Storeの制約を満たさないことを表す。
var ErrInvalidEvent = errors.New("invalid risk event")
