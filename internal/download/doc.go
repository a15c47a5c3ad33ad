// Package download saves matched resources to the output directory.
//
// A resource is fetched with a single GET that does not follow redirects;
// only a 200 response is saved. Files are created with O_EXCL and a
// numeric suffix ("cat_1.png", "cat_2.png", ...) is added on collision, so
// an existing file is never overwritten, even when several downloads of
// the same name race each other.
package download
