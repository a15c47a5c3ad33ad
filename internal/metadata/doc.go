// Package metadata reads file information and EXIF tags from local files,
// typically the images a crawl downloaded.
package metadata
