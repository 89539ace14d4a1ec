package export

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prequal-cli/internal/config"
)

const ftpTimeout = 30 * time.Second

// Upload delivers a local file to the configured FTP drop directory. The
// remote file keeps the local base name.
func Upload(ctx context.Context, cfg config.ExportConfig, localPath string) error {
	if cfg.FTPAddr == "" {
		return eris.New("export: ftp address not configured")
	}

	host := cfg.FTPAddr
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}

	zap.L().Debug("export: ftp connecting", zap.String("host", host))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return eris.Wrap(err, "export: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	user, pass := cfg.FTPUser, cfg.FTPPass
	if user == "" {
		user, pass = "anonymous", "anonymous@"
	}
	if err := conn.Login(user, pass); err != nil {
		return eris.Wrap(err, "export: ftp login")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return eris.Wrap(err, "export: open local file")
	}
	defer f.Close()

	remote := filepath.Base(localPath)
	if cfg.FTPDir != "" {
		if err := conn.ChangeDir(cfg.FTPDir); err != nil {
			return eris.Wrapf(err, "export: ftp cd %s", cfg.FTPDir)
		}
	}

	if err := conn.Stor(remote, f); err != nil {
		return eris.Wrapf(err, "export: ftp store %s", remote)
	}

	zap.L().Info("export: uploaded",
		zap.String("host", host),
		zap.String("file", remote),
	)
	return nil
}
