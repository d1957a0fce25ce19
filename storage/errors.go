// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import "errors"

var (
	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrStorageTimeout indicates that an operation exceeded its deadline.
	ErrStorageTimeout = errors.New("storage operation timed out")

	// ErrStorageUnavailable indicates that the backend failed to serve a request.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrCorruptRecord indicates a stored record failed its checksum.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrUnknownAdapter indicates no adapter is registered under the requested kind.
	ErrUnknownAdapter = errors.New("unknown storage adapter")

	// ErrAdapterExists indicates an adapter kind is already registered.
	ErrAdapterExists = errors.New("storage adapter already registered")

	// ErrInvalidAdapter indicates an empty adapter kind or a nil factory.
	ErrInvalidAdapter = errors.New("invalid storage adapter")

	// ErrLocationRequired indicates a durable adapter was opened without a location.
	ErrLocationRequired = errors.New("storage location required")

	// ErrInvalidSnapshot indicates a snapshot stream is malformed.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
