/*
go-yolodetect converts raw YOLO-style detector output tensors into final
geometric detections, either axis-aligned boxes or rotated quadrilaterals,
mapped back into source image coordinates.

The model itself is treated as an opaque collaborator behind the Model
interface, a tensor goes in and a tensor comes out.  Everything between the
source image and the polygons handed to a rendering sink lives here: square
padding and resize with ratio tracking, box decoding from the model's native
output layout, class score reduction, Non-Maximum Suppression and rotated
corner geometry.

See the detector package for the two pipeline entry points and the onnx
package for an ONNX Runtime backed Model implementation.
*/
package yolodetect
