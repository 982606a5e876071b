package agpm

import "github.com/bianoble/agpm/internal/engine"

// Type aliases re-export engine types as the public API.
// Users import "github.com/bianoble/agpm/pkg/agpm" and use
// agpm.InstallReport, agpm.CheckReport, etc.

type InstallOptions = engine.InstallOptions
type UninstallOptions = engine.UninstallOptions
type PruneOptions = engine.PruneOptions

type Action = engine.Action
type FileAction = engine.FileAction
type BundleSummary = engine.BundleSummary
type InstallReport = engine.InstallReport
type UninstallReport = engine.UninstallReport
type DriftEntry = engine.DriftEntry
type CheckReport = engine.CheckReport
type BundleStatus = engine.BundleStatus
type SourceDelta = engine.SourceDelta
type SourceError = engine.SourceError
type VerifyReport = engine.VerifyReport
type InfoResult = engine.InfoResult
type PlatformInfo = engine.PlatformInfo
