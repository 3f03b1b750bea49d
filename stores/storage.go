package stores

import (
	"os"
	"strings"

	"photobooth/core"
	"photobooth/stores/aws"
	"photobooth/stores/filesystem"
	"photobooth/stores/memory"
	"photobooth/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Store is a union interface that includes all records store types.
type Store interface {
	core.CatalogStore
	core.PhotoStore
	core.UserStore
	core.StatsStore
}

func GetStore() Store {
	storageType := os.Getenv("STORAGE_TYPE")
	var store Store

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "photobooth.db"
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}

// AssetPublicURL is the prefix asset URLs are handed out under.
func AssetPublicURL() string {
	if u := os.Getenv("ASSET_PUBLIC_URL"); u != "" {
		return strings.TrimSuffix(u, "/")
	}
	return "/assets"
}

// GetAssetStore selects where uploaded art and exported photos live.
func GetAssetStore() core.AssetStore {
	storageType := os.Getenv("ASSET_STORAGE_TYPE")
	publicURL := AssetPublicURL()
	var store core.AssetStore

	storageField := logrus.Fields{
		"assetStorageType": storageType,
		"publicURL":        publicURL,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data"
		}
		storageField["basePath"] = basePath
		store = filesystem.NewStore(basePath, publicURL)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 asset storage")
		}
		storageField["bucketName"] = bucketName
		store = aws.NewStore(bucketName, publicURL)
	default:
		store = memory.NewAssetStore(publicURL)
		storageField["assetStorageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use asset storage")
	return store
}
