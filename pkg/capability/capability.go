// Package capability classifies the host platform into the tiers that decide
// which permission mechanism and which file-handle strategy apply.
//
// Tiers are derived from the platform's SDK level every time they are needed;
// nothing here is cached.
package capability

import "context"

// SDK levels at which platform behavior changes.
const (
	// SDKRuntimePermissions is the first level with per-permission runtime prompts (Android 6.0).
	SDKRuntimePermissions = 23
	// SDKContentURIs is the first level where file:// URIs may not cross app boundaries (Android 7.0).
	SDKContentURIs = 24
	// SDKManageAllFiles is the first level with the "manage all files" grant (Android 11).
	SDKManageAllFiles = 30
)

// PermissionTier selects the storage-permission mechanism.
type PermissionTier int

const (
	// TierLegacy means storage access is granted at install time.
	TierLegacy PermissionTier = iota
	// TierRuntimeRequestable means the write permission is requested with a runtime prompt.
	TierRuntimeRequestable
	// TierScopedManageAll means broad storage access needs the manage-all-files settings grant.
	TierScopedManageAll
)

func (t PermissionTier) String() string {
	switch t {
	case TierLegacy:
		return "legacy"
	case TierRuntimeRequestable:
		return "runtime_requestable"
	case TierScopedManageAll:
		return "scoped_manage_all"
	default:
		return "unknown"
	}
}

// HandleStrategy selects how a file is referenced when handed to another app.
type HandleStrategy int

const (
	// HandleFileURI passes a direct file:// reference.
	HandleFileURI HandleStrategy = iota
	// HandleContentURI passes a read-scoped content:// handle from the app's file provider.
	HandleContentURI
)

func (s HandleStrategy) String() string {
	switch s {
	case HandleFileURI:
		return "file_uri"
	case HandleContentURI:
		return "content_uri"
	default:
		return "unknown"
	}
}

// PermissionTierFor maps an SDK level to its permission tier.
func PermissionTierFor(sdk int) PermissionTier {
	switch {
	case sdk >= SDKManageAllFiles:
		return TierScopedManageAll
	case sdk >= SDKRuntimePermissions:
		return TierRuntimeRequestable
	default:
		return TierLegacy
	}
}

// HandleStrategyFor maps an SDK level to its file-handle strategy.
func HandleStrategyFor(sdk int) HandleStrategy {
	if sdk >= SDKContentURIs {
		return HandleContentURI
	}
	return HandleFileURI
}

// Tiers is the full classification for one SDK level.
type Tiers struct {
	SDK        int
	Permission PermissionTier
	Handle     HandleStrategy
}

// Resolve classifies an SDK level.
func Resolve(sdk int) Tiers {
	return Tiers{
		SDK:        sdk,
		Permission: PermissionTierFor(sdk),
		Handle:     HandleStrategyFor(sdk),
	}
}

// VersionSource reports the platform SDK level.
type VersionSource interface {
	SDKInt(ctx context.Context) (int, error)
}

// Fixed is a VersionSource that always reports the same level.
type Fixed int

// SDKInt returns the fixed level.
func (f Fixed) SDKInt(context.Context) (int, error) {
	return int(f), nil
}

// Current queries src and classifies the result.
func Current(ctx context.Context, src VersionSource) (Tiers, error) {
	sdk, err := src.SDKInt(ctx)
	if err != nil {
		return Tiers{}, err
	}
	return Resolve(sdk), nil
}
