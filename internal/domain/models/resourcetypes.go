// internal/domain/models/resourcetypes.go
package models

// Canonical resource type identifiers stored in Resource.ResourceType.
const (
	ResourceTypeLesson            = "lesson"
	ResourceTypeClassroomResource = "classroom_resource"
)
