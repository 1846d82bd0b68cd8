package model

import "time"

// Deployment is a deployment record from the GitHub Deployments API.
type Deployment struct {
	ID          int64
	Environment string
	Ref         string
	CreatedAt   time.Time
}

// DeploymentStatus is the most recent status reported for a deployment.
type DeploymentStatus struct {
	State          string // success, failure, error, pending, in_progress.
	EnvironmentURL string
}

// PreviewSource records which signal produced the preview URL.
type PreviewSource string

const (
	PreviewSourceCheck      PreviewSource = "check"
	PreviewSourceComment    PreviewSource = "comment"
	PreviewSourceDeployment PreviewSource = "deployment"
)

// PreviewDeployment is the resolved preview-deploy artifact for a head commit.
// A validated URL is treated as sufficient deploy-success evidence even when
// no check run corroborates it.
type PreviewDeployment struct {
	URL           string
	ScreenshotURL string
	Succeeded     bool
	Source        PreviewSource
}
