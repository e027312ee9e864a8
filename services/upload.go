package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const (
	// MaxImageSize is the largest accepted image upload (5MB)
	MaxImageSize = 5 * 1024 * 1024
	// MaxImageDimension is the long edge JPEG and PNG images are downscaled to
	MaxImageDimension = 1600
	// MaxImagePixels bounds the declared size of an image before it is decoded
	MaxImagePixels = 40_000_000
)

var (
	ErrImageTooLarge   = fmt.Errorf("la imagen excede el tamaño máximo de %dMB", MaxImageSize/1024/1024)
	ErrImageType       = errors.New("formato de imagen no permitido (JPG, PNG, WEBP o GIF)")
	ErrTooManyImages   = fmt.Errorf("se permiten como máximo %d imágenes", MaxImagesPerConsultation)
	ErrImageDimensions = fmt.Errorf("la imagen excede las dimensiones permitidas (%d megapíxeles)", MaxImagePixels/1_000_000)
)

// allowedImageTypes maps sniffed content types to stored extensions
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ProcessedImage is an image ready to be stored
type ProcessedImage struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// ProcessImage checks size and sniffed content type, verifies that the image
// decodes, and downscales JPEG and PNG images whose long edge exceeds
// MaxImageDimension.
func ProcessImage(r io.Reader) (*ProcessedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, ErrImageType
	}

	var cfg image.Config
	switch contentType {
	case "image/webp":
		cfg, err = webp.DecodeConfig(bytes.NewReader(data))
	case "image/gif":
		cfg, err = gif.DecodeConfig(bytes.NewReader(data))
	default:
		cfg, _, err = image.DecodeConfig(bytes.NewReader(data))
	}
	if err != nil {
		return nil, ErrImageType
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, ErrImageDimensions
	}

	result := &ProcessedImage{
		Data:        data,
		ContentType: contentType,
		Ext:         ext,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}

	if contentType != "image/jpeg" && contentType != "image/png" {
		return result, nil
	}
	if cfg.Width <= MaxImageDimension && cfg.Height <= MaxImageDimension {
		return result, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrImageType
	}
	resized := downscale(img, MaxImageDimension)

	var buf bytes.Buffer
	if contentType == "image/png" {
		err = png.Encode(&buf, resized)
	} else {
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	bounds := resized.Bounds()
	result.Data = buf.Bytes()
	result.Width = bounds.Dx()
	result.Height = bounds.Dy()
	return result, nil
}

// downscale fits img inside a maxEdge square keeping its aspect ratio
func downscale(img image.Image, maxEdge int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	newWidth, newHeight := maxEdge, maxEdge
	if width > height {
		newHeight = height * maxEdge / width
	} else {
		newWidth = width * maxEdge / height
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// StoreConsultationImages processes every file first and only then uploads
// them, so a bad file never leaves partial uploads behind. It returns the
// storage keys in upload order.
func StoreConsultationImages(ctx context.Context, storage StorageProvider, files []*multipart.FileHeader, now time.Time) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > MaxImagesPerConsultation {
		return nil, ErrTooManyImages
	}

	processed := make([]*ProcessedImage, 0, len(files))
	for _, fh := range files {
		if fh.Size > MaxImageSize {
			return nil, ErrImageTooLarge
		}
		src, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open uploaded file: %w", err)
		}
		img, err := ProcessImage(src)
		src.Close()
		if err != nil {
			return nil, err
		}
		processed = append(processed, img)
	}

	keys := make([]string, 0, len(processed))
	for _, img := range processed {
		key := GenerateConsultationImageKey(img.Ext, now)
		if _, err := storage.UploadReader(ctx, bytes.NewReader(img.Data), key, img.ContentType, int64(len(img.Data))); err != nil {
			DeleteStoredImages(ctx, storage, keys)
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// IsImageError reports whether err is a client-side image problem
func IsImageError(err error) bool {
	return errors.Is(err, ErrImageTooLarge) ||
		errors.Is(err, ErrImageType) ||
		errors.Is(err, ErrImageDimensions) ||
		errors.Is(err, ErrTooManyImages)
}

// DeleteStoredImages removes stored images, logging failures
func DeleteStoredImages(ctx context.Context, storage StorageProvider, keys []string) {
	for _, key := range keys {
		if err := storage.Delete(ctx, key); err != nil {
			log.Printf("[WARNING] Failed to delete image %s: %v", key, err)
		}
	}
}
