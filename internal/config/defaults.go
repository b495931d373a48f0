package config

const (
	SourceTypeCSV    = "csv"
	SourceTypeInline = "inline"

	DownloaderTypeFile  = "file"
	DownloaderTypeVideo = "video"
)

const (
	defaultRootDir           = "~/repertoire"
	defaultLockFile          = ".repertoire.lock"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultConcurrency       = 1
	defaultCSVDelimiter      = ","
	defaultFileNbAttempts    = 3
	defaultRequestTimeout    = 300
	defaultVideoBinary       = "yt-dlp"
	defaultVideoFilename     = "%video_id%.%file_extension%"
	defaultVideoOutput       = "%(id)s.%(ext)s"
	defaultVideoVariantType  = "video"
	defaultVideoVariantExt   = "mp4"
	defaultFilenamePriority  = 255
	defaultVideoFilePattern  = `(https?://(?:www\.)?(?:youtube\.com/watch\?v=|youtu\.be/)([A-Za-z0-9_-]{11}))`
	defaultFileLinkPattern   = `(https?://[^\s"'<>()]+\.(?:%extensions%))(?:[\s"'<>()]|$)`
	defaultFileLinkURLIndex  = 1
	defaultVideoURLIndex     = 1
	defaultVideoIDIndex      = 2
)

// ExtensionsPlaceholder is replaced in file downloader patterns by the
// configured extensions alternation.
const ExtensionsPlaceholder = "%extensions%"

// FilenamePriority is the path priority of the per-download file segment. It
// sorts after every configured folder segment.
const FilenamePriority = defaultFilenamePriority

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		RootDir:  defaultRootDir,
		LockFile: defaultLockFile,
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Run: Run{
			Interactive: true,
			Concurrency: defaultConcurrency,
		},
	}
}

// DefaultPermanentErrors lists the fetch tool messages that never improve on
// retry.
func DefaultPermanentErrors() []PermanentError {
	return []PermanentError{
		{Pattern: `(?i)this video is unavailable`, Reason: "The video %video_id% is unavailable."},
		{Pattern: `(?i)this video has been removed by the user`, Reason: "The video %video_id% has been removed by its user."},
		{Pattern: `(?i)the uploader has closed their YouTube account`, Reason: "The channel that published the video %video_id% has been removed."},
		{Pattern: `(?i)who has blocked it on copyright grounds`, Reason: "The video %video_id% has been blocked for copyright infringement."},
	}
}
