package utils

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("VersionString", func() {
	It("includes the version, sha and build time", func() {
		s := VersionString()
		Expect(s).To(ContainSubstring("Version: " + Version))
		Expect(s).To(ContainSubstring("Sha: " + Sha))
		Expect(s).To(ContainSubstring("Built at: " + Buildtime))
	})
})
