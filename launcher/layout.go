package launcher

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/splatloc/train-launcher/pkg/fileutil"
	"go.uber.org/zap"
)

// Layout is the on-disk arrangement of a scene that the training script accepts.
type Layout string

const (
	// LayoutSplit has pre-split train/test poses under "train/poses".
	LayoutSplit Layout = "split"
	// LayoutColmap has a COLMAP reconstruction under "sparse".
	LayoutColmap Layout = "colmap"
)

// ErrUnknownLayout is returned when a source path matches no known layout.
var ErrUnknownLayout = errors.New("could not recognize scene type")

// DetectLayout inspects the scene source directory.
func DetectLayout(source string) (Layout, error) {
	if !fileutil.IsDir(source) {
		return "", fmt.Errorf("source path %q is not a directory", source)
	}
	if fileutil.Exist(filepath.Join(source, "train", "poses")) {
		return LayoutSplit, nil
	}
	if fileutil.Exist(filepath.Join(source, "sparse")) {
		return LayoutColmap, nil
	}
	return "", fmt.Errorf("%w at %q (expected 'train/poses' or 'sparse')", ErrUnknownLayout, source)
}

// preflight fails fast on inputs the training script would reject.
func (l *Launcher) preflight() (Layout, error) {
	src := l.cfg.HostPath(l.cfg.SourcePath)
	layout, err := DetectLayout(src)
	if err != nil {
		return "", err
	}

	imageDir, featureDir := filepath.Join(src, l.cfg.ImageDir), filepath.Join(src, l.cfg.FeatureDir)
	if layout == LayoutSplit {
		imageDir, featureDir = filepath.Join(src, "train", l.cfg.ImageDir), filepath.Join(src, "train", l.cfg.FeatureDir)
	}
	switch {
	case fileutil.IsDir(imageDir):
	case layout == LayoutColmap:
		return "", fmt.Errorf("image directory %q does not exist", imageDir)
	default:
		l.lg.Warn("image directory not found", zap.String("path", imageDir))
	}
	if !fileutil.IsDir(featureDir) {
		// the training script runs without features
		l.lg.Warn("feature directory not found; training without features", zap.String("path", featureDir))
	}

	if err = fileutil.IsDirWriteable(filepath.Join(src, "outputs")); err != nil {
		return "", fmt.Errorf("outputs directory under %q is not writable (%v)", src, err)
	}
	if output := l.cfg.HostPath(l.cfg.OutputPath()); fileutil.Exist(output) {
		l.lg.Warn("output path already exists; previous artifacts may be overwritten",
			zap.String("output-path", output),
		)
	}

	l.lg.Info("preflight passed",
		zap.String("source-path", src),
		zap.String("layout", string(layout)),
	)
	return layout, nil
}
