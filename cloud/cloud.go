// Package cloud wraps the Google Cloud command line tools available on the workbench.
package cloud

import (
	"os"
	"path"
	"strings"

	"github.com/dasnellings/aouTools/shell"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// IsRemote reports whether p is a gs:// object path.
func IsRemote(p string) bool {
	return strings.HasPrefix(p, "gs://")
}

// Join builds an object path under a bucket, e.g. Join("gs://b", "samples", "x.csv").
func Join(bucket string, elem ...string) string {
	return strings.TrimRight(bucket, "/") + "/" + path.Join(elem...)
}

// Copy runs gsutil cp, billing requester-pays buckets to project when it is set.
func Copy(sh *shell.Runner, gsutil, project, src, dst string) error {
	args := make([]string, 0, 5)
	if project != "" {
		args = append(args, "-u", project)
	}
	args = append(args, "cp", src, dst)
	return sh.Run(gsutil, args...)
}

// Cached returns a local copy of remote in dir, downloading it only if a file
// with the same basename is not already there. Local paths are returned unchanged.
// Cached files are never refreshed.
func Cached(sh *shell.Runner, gsutil, project, remote, dir string) (string, error) {
	if !IsRemote(remote) {
		return remote, nil
	}
	local := path.Join(dir, path.Base(remote))
	if _, err := os.Stat(local); err == nil {
		log.Debugf("using cached %s", local)
		return local, nil
	}
	log.Printf("downloading %s", remote)
	if err := Copy(sh, gsutil, project, remote, local); err != nil {
		return "", errors.Wrapf(err, "fetching %s", remote)
	}
	if sh.DryRun {
		return local, nil
	}
	if _, err := os.Stat(local); err != nil {
		return "", errors.Errorf("gsutil finished but %s was not created", local)
	}
	return local, nil
}

// AccessToken fetches a short-lived application-default access token.
func AccessToken(sh *shell.Runner, gcloud string) (string, error) {
	out, err := sh.Output(gcloud, "auth", "application-default", "print-access-token")
	if err != nil {
		return "", errors.Wrap(err, "fetching access token")
	}
	token := strings.TrimSpace(out)
	if token == "" {
		return "", errors.New("gcloud returned an empty access token")
	}
	return token, nil
}
