package util

import (
	"io/ioutil"
	"os"
	"path/filepath"
)

// ListFileDirByPath returns the names of the immediate subdirectories of path.
func ListFileDirByPath(path string) map[string]string {
	resultMap := make(map[string]string)
	files, _ := ioutil.ReadDir(path)
	for _, f := range files {
		if f.IsDir() {
			resultMap[f.Name()] = f.Name()
		}
	}
	return resultMap
}

// CreateDataBaseDir ensures Path/folderName exists, creating it if necessary.
func CreateDataBaseDir(path string, folderName string) error {
	folderPath := filepath.Join(path, folderName)
	if _, err := os.Stat(folderPath); os.IsNotExist(err) {
		if err := os.MkdirAll(folderPath, 0777); err != nil {
			return err
		}
	}
	return nil
}

// PathExists reports whether path exists on disk.
func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
