package qti

import (
	"bytes"
	"fmt"
	"path"
	"time"

	"github.com/FocuswithJustin/quizqti/core/cas"
	"github.com/FocuswithJustin/quizqti/core/markdown"
)

const manifestHeader = `<?xml version="1.0" encoding="UTF-8"?>
<manifest identifier="%[1]s" xmlns="http://www.imsglobal.org/xsd/imsccv1p1/imscp_v1p1" xmlns:lom="http://ltsc.ieee.org/xsd/imsccv1p1/LOM/resource" xmlns:imsmd="http://www.imsglobal.org/xsd/imsmd_v1p2" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="http://www.imsglobal.org/xsd/imsccv1p1/imscp_v1p1 http://www.imsglobal.org/xsd/imscp_v1p1.xsd http://ltsc.ieee.org/xsd/imsccv1p1/LOM/resource http://www.imsglobal.org/profile/cc/ccv1p1/LOM/ccv1p1_lomresource_v1p0.xsd http://www.imsglobal.org/xsd/imsmd_v1p2 http://www.imsglobal.org/xsd/imsmd_v1p2p2.xsd">
  <metadata>
    <schema>IMS Content</schema>
    <schemaversion>1.1.3</schemaversion>
    <imsmd:lom>
      <imsmd:general>
        <imsmd:title>
          <imsmd:string>QTI Quiz Export for Canvas</imsmd:string>
        </imsmd:title>
      </imsmd:general>
      <imsmd:lifeCycle>
        <imsmd:contribute>
          <imsmd:date>
            <imsmd:dateTime>%[2]s</imsmd:dateTime>
          </imsmd:date>
        </imsmd:contribute>
      </imsmd:lifeCycle>
      <imsmd:rights>
        <imsmd:copyrightAndOtherRestrictions>
          <imsmd:value>yes</imsmd:value>
        </imsmd:copyrightAndOtherRestrictions>
        <imsmd:description>
          <imsmd:string>Private (Copyrighted) - http://en.wikipedia.org/wiki/Copyright</imsmd:string>
        </imsmd:description>
      </imsmd:rights>
    </imsmd:lom>
  </metadata>
  <organizations/>
  <resources>
    <resource identifier="%[3]s" type="imsqti_xmlv1p2">
      <file href="%[3]s/%[3]s.xml"/>
      <dependency identifierref="%[4]s"/>
    </resource>
    <resource identifier="%[4]s" type="associatedcontent/imscc_xmlv1p1/learning-application-resource" href="%[3]s/assessment_meta.xml">
      <file href="%[3]s/assessment_meta.xml"/>
    </resource>
`

const manifestImage = `    <resource identifier="%[1]s" type="webcontent" href="%[2]s">
      <file href="%[2]s"/>
    </resource>
`

const manifestFooter = `  </resources>
</manifest>
`

// imagePath is the archive path of a bundled image.
func imagePath(b *cas.Blob) string {
	return path.Join(markdown.ImageDir, b.Name)
}

// Manifest renders imsmanifest.xml. date is written as the package
// creation date.
func Manifest(ids Identifiers, images []*cas.Blob, date time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, manifestHeader, ids.Manifest, date.UTC().Format("2006-01-02"), ids.Assessment, ids.Dependency)
	for _, img := range images {
		fmt.Fprintf(&b, manifestImage, imageIdent(img.Hash), imagePath(img))
	}
	b.WriteString(manifestFooter)
	return b.Bytes()
}
