// Package downloaders maps configured downloader types to their extraction
// rule and fetch strategy.
//
// A Registry holds one Factory per type name. The default registry knows:
//
//   - "file": plain HTTP(S) links whose extension matches the configured
//     list; each file lands under its decoded basename.
//   - "video": video page links fetched through an external downloader
//     binary (yt-dlp by default), one download per configured variant.
//
// New types are added with Register; nothing is resolved by reflection.
package downloaders
