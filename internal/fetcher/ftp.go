package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultFTPTimeout = 30 * time.Second

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher retrieves files from anonymous FTP servers, which is how TIGER
// boundary archives are still published.
type FTPFetcher struct {
	timeout time.Duration
}

// NewFTPFetcher builds an FTPFetcher, defaulting the dial timeout.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	t := opts.Timeout
	if t <= 0 {
		t = defaultFTPTimeout
	}
	return &FTPFetcher{timeout: t}
}

// splitFTPURL returns the dial address (host:port, port defaulting to 21)
// and the remote path of an ftp:// URL.
func splitFTPURL(raw string) (addr, remote string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("ftp: unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" {
		return "", "", eris.New("ftp: url has no path")
	}

	addr = u.Host
	if _, _, splitErr := net.SplitHostPort(addr); splitErr != nil {
		addr = net.JoinHostPort(addr, "21")
	}
	return addr, u.Path, nil
}

// ftpBody ties the data connection's lifetime to the control connection so a
// single Close releases both.
type ftpBody struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (b *ftpBody) Read(p []byte) (int, error) { return b.resp.Read(p) }

func (b *ftpBody) Close() error {
	err := b.resp.Close()
	if qerr := b.conn.Quit(); err == nil {
		err = qerr
	}
	return eris.Wrap(err, "ftp: close")
}

// Download retrieves the file behind an ftp:// URL. The caller must close
// the returned reader to release the connection.
func (f *FTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	addr, remote, err := splitFTPURL(rawURL)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("ftp download", zap.String("addr", addr), zap.String("path", remote))

	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(f.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp: dial")
	}
	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "ftp: login")
	}
	resp, err := conn.Retr(remote)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "ftp: retrieve")
	}
	return &ftpBody{resp: resp, conn: conn}, nil
}

// DownloadToFile writes the remote file to path and reports bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "ftp: create file")
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, body)
	return n, eris.Wrap(err, "ftp: write file")
}
