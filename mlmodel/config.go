package mlmodel

import "go.viam.com/perception/vision"

// Config collects the model asset paths for a full set. Kinds with an
// empty model path are left out of the set entirely.
type Config struct {
	Object ObjectConfig
	Face   FaceConfig
	Pose   PoseConfig
	Hand   HandConfig
}

// Loaders builds the per-kind loader map for NewSet from a Config.
func Loaders(cfg Config) map[vision.Kind]Loader {
	loaders := map[vision.Kind]Loader{}
	if cfg.Object.ModelPath != "" {
		loaders[vision.KindObject] = NewObjectLoader(cfg.Object)
	}
	if cfg.Face.ModelPath != "" {
		loaders[vision.KindFace] = NewFaceLoader(cfg.Face)
	}
	if cfg.Pose.ModelPath != "" {
		loaders[vision.KindPose] = NewPoseLoader(cfg.Pose)
	}
	if cfg.Hand.ModelPath != "" {
		loaders[vision.KindHand] = NewHandLoader(cfg.Hand)
	}
	return loaders
}
