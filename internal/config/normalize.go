package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeRoot(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeRun()
	if err := c.normalizeSources(); err != nil {
		return err
	}
	c.normalizeDownloaders()
	return nil
}

func (c *Config) normalizeRoot() error {
	if value, ok := os.LookupEnv("REPERTOIRE_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.RootDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.RootDir) == "" {
		c.RootDir = defaultRootDir
	}
	var err error
	if c.RootDir, err = expandPath(strings.TrimSpace(c.RootDir)); err != nil {
		return fmt.Errorf("root_dir: %w", err)
	}
	c.LockFile = strings.TrimSpace(c.LockFile)
	if c.LockFile == "" {
		c.LockFile = defaultLockFile
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if file := strings.TrimSpace(c.Logging.File); file != "" {
		if expanded, err := expandPath(file); err == nil {
			c.Logging.File = expanded
		}
	}
}

func (c *Config) normalizeRun() {
	if c.Run.Concurrency == 0 {
		c.Run.Concurrency = defaultConcurrency
	}
}

func (c *Config) normalizeSources() error {
	for i := range c.Sources {
		src := &c.Sources[i]
		src.Type = strings.ToLower(strings.TrimSpace(src.Type))
		src.Name = strings.TrimSpace(src.Name)
		if src.Name == "" {
			src.Name = src.Type
		}
		if src.Type == SourceTypeCSV {
			if src.Delimiter == "" {
				src.Delimiter = defaultCSVDelimiter
			}
			for j, resource := range src.Resources {
				expanded, err := expandPath(strings.TrimSpace(resource))
				if err != nil {
					return fmt.Errorf("sources[%d].resources[%d]: %w", i, j, err)
				}
				src.Resources[j] = expanded
			}
		}
	}
	return nil
}

func (c *Config) normalizeDownloaders() {
	for i := range c.Downloaders {
		d := &c.Downloaders[i]
		d.Type = strings.ToLower(strings.TrimSpace(d.Type))
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			d.Name = d.Type
		}
		switch d.Type {
		case DownloaderTypeFile:
			normalizeFileDownloader(d)
		case DownloaderTypeVideo:
			normalizeVideoDownloader(d)
		}
	}
}

func normalizeFileDownloader(d *Downloader) {
	if strings.TrimSpace(d.Pattern) == "" {
		d.Pattern = defaultFileLinkPattern
		if d.URLIndex == 0 {
			d.URLIndex = defaultFileLinkURLIndex
		}
	}
	if d.NbAttempts <= 0 {
		d.NbAttempts = defaultFileNbAttempts
	}
	if d.RequestTimeoutSeconds <= 0 {
		d.RequestTimeoutSeconds = defaultRequestTimeout
	}
	d.Extensions = strings.Trim(strings.TrimSpace(d.Extensions), "|")
}

func normalizeVideoDownloader(d *Downloader) {
	if strings.TrimSpace(d.Pattern) == "" {
		d.Pattern = defaultVideoFilePattern
		if d.URLIndex == 0 {
			d.URLIndex = defaultVideoURLIndex
		}
		if d.IDIndex == 0 {
			d.IDIndex = defaultVideoIDIndex
		}
	}
	d.Binary = strings.TrimSpace(d.Binary)
	if d.Binary == "" {
		d.Binary = defaultVideoBinary
	}
	if strings.TrimSpace(d.Filename) == "" {
		d.Filename = defaultVideoFilename
	}
	if d.Options == nil {
		d.Options = map[string]string{}
	}
	if _, ok := d.Options["output"]; !ok {
		d.Options["output"] = defaultVideoOutput
	}
	if len(d.Variants) == 0 {
		d.Variants = []Variant{{Type: defaultVideoVariantType, Extension: defaultVideoVariantExt}}
	}
	for j := range d.Variants {
		d.Variants[j].Type = strings.TrimSpace(d.Variants[j].Type)
		d.Variants[j].Extension = strings.TrimPrefix(strings.TrimSpace(d.Variants[j].Extension), ".")
	}
	if len(d.PermanentErrors) == 0 {
		d.PermanentErrors = DefaultPermanentErrors()
	}
	if d.AttemptTimeoutSeconds < 0 {
		d.AttemptTimeoutSeconds = 0
	}
}
